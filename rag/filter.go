// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rag

import (
	"path/filepath"
	"strings"
)

// DirectorySourceConfig configures a DirectorySource.
type DirectorySourceConfig struct {
	Path        string   `mapstructure:"path" yaml:"path"`
	Include     []string `mapstructure:"include" yaml:"include"`
	Exclude     []string `mapstructure:"exclude" yaml:"exclude"`
	MaxFileSize int64    `mapstructure:"max_file_size" yaml:"max_file_size"`
}

// defaultExcludes are directories and file patterns skipped by default:
// VCS metadata, dependency trees and build output that are never useful
// document content.
var defaultExcludes = []string{
	".git/**", ".svn/**", ".hg/**",
	"node_modules/**", "vendor/**",
	"*.exe", "*.dll", "*.so", "*.dylib",
	"*.pyc", "__pycache__/**",
	".DS_Store",
}

// DefaultDirectorySourceConfig returns a DirectorySourceConfig rooted at path
// with a sensible exclude list and a 10MB per-file cap.
func DefaultDirectorySourceConfig(path string) DirectorySourceConfig {
	return DirectorySourceConfig{
		Path:        path,
		Include:     []string{"**/*"},
		Exclude:     defaultExcludes,
		MaxFileSize: 10 * 1024 * 1024,
	}
}

// PatternFilter implements FileFilter using glob-style include/exclude
// patterns matched against a path relative to a base directory.
type PatternFilter struct {
	basePath string
	include  []string
	exclude  []string
}

// NewPatternFilter creates a pattern-based file filter. include/exclude
// entries are glob patterns as understood by path/filepath.Match, with a
// "**" suffix additionally matching any path under a directory prefix.
func NewPatternFilter(basePath string, include, exclude []string) (*PatternFilter, error) {
	return &PatternFilter{basePath: basePath, include: include, exclude: exclude}, nil
}

// ShouldInclude reports whether path matches at least one include pattern.
// An empty include list means everything is included.
func (f *PatternFilter) ShouldInclude(path string) bool {
	if len(f.include) == 0 {
		return true
	}
	rel := f.relative(path)
	for _, pattern := range f.include {
		if matchGlob(pattern, rel) {
			return true
		}
	}
	return false
}

// ShouldExclude reports whether path matches any exclude pattern.
func (f *PatternFilter) ShouldExclude(path string) bool {
	rel := f.relative(path)
	for _, pattern := range f.exclude {
		if matchGlob(pattern, rel) {
			return true
		}
	}
	return false
}

func (f *PatternFilter) relative(path string) string {
	if f.basePath == "" {
		return path
	}
	rel, err := filepath.Rel(f.basePath, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// matchGlob matches a "**"-aware glob pattern against a slash-separated path.
func matchGlob(pattern, path string) bool {
	pattern = filepath.ToSlash(pattern)
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	if pattern == "**/*" {
		return true
	}
	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		if ok, _ := filepath.Match(suffix, filepath.Base(path)); ok {
			return true
		}
		return strings.HasSuffix(path, "/"+suffix)
	}

	if ok, _ := filepath.Match(pattern, path); ok {
		return true
	}
	ok, _ := filepath.Match(pattern, filepath.Base(path))
	return ok
}

// Ensure PatternFilter implements FileFilter.
var _ FileFilter = (*PatternFilter)(nil)
