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
	"mime"
	"path/filepath"
	"strings"
)

// extByMimeType covers extensions the stdlib mime package doesn't map on a
// minimal install, plus the document formats the native parsers handle.
var extByMimeType = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".pdf":      "application/pdf",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx":     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".json":     "application/json",
	".yaml":     "application/x-yaml",
	".yml":      "application/x-yaml",
	".toml":     "application/toml",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".js":       "text/javascript",
	".ts":       "text/typescript",
	".html":     "text/html",
	".htm":      "text/html",
	".csv":      "text/csv",
}

// detectMimeType infers a MIME type from a file's extension, falling back
// to the stdlib's registry and finally to a generic octet-stream.
func detectMimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mt, ok := extByMimeType[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		if idx := strings.Index(mt, ";"); idx >= 0 {
			mt = mt[:idx]
		}
		return strings.TrimSpace(mt)
	}
	return "application/octet-stream"
}
