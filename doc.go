// Package agentflow provides a composable LLM agent library: an agent loop
// state machine, a tool registry, a guardrail chain, pluggable context
// pruning, a DAG task scheduler and a retrieval-augmented generation (RAG)
// sync/search engine.
//
// Unlike a declarative, YAML-driven agent platform, agentflow is meant to be
// embedded: construct an agent.Agent in code, register tools against
// tool.Registry, wire guardrails into the loop, and call Run or RunWithEvents
// directly. A thin config package and a cmd/agentflow CLI sit on top for
// running agents from a config file when that's more convenient than wiring
// them by hand.
//
// # Quick Start
//
//	client, _ := llm.NewOpenAIClient(llm.OpenAIConfig{APIKey: os.Getenv("OPENAI_API_KEY"), Model: "gpt-4o-mini"})
//	reg := tool.NewRegistry()
//	reg.Register(mytool.New())
//	a, _ := agent.New(agent.Config{Client: client, Tools: reg, SystemMessage: "You are a helpful assistant"})
//	result, _ := a.Run(ctx, "what's the weather in Lisbon?")
//
// # Key Packages
//
//   - agent:      the loop state machine (C5), agent state (C4) and streaming events
//   - tool:       the tool registry (C2) and built-in tools
//   - guardrail:  input/output guardrail chains (C3)
//   - llm:        provider clients (Anthropic, OpenAI, Gemini, Ollama) behind a common interface
//   - dag:        a DAG task scheduler (C7) for multi-step workflows
//   - rag:        document sync (C8) and hybrid vector/keyword search (C9)
//   - config:     YAML configuration loading for the pieces above
//   - server:     an optional HTTP/SSE and WebSocket surface
//
// # Status
//
// agentflow is under active development; APIs may still change between
// minor versions.
package agentflow
