package router

import (
	"fmt"
	"time"

	"github.com/kalambet/ragroute/internal/session"
)

const policyTemplate = `You are an AI assistant capable of answering questions using two tools provided to you:

1. **Retrieval-Augmented Generation (RAG) Pipeline Tool** (rag_tool):
- You have access to a pre-configured RAG pipeline, which is capable of retrieving relevant information about a document containing information on the topic of 'Sound'.
- If the user's input is related to the topic of 'Sound', trigger the RAG tool.

2. **Tavily Web Search Tool** (web_search_tool):
- You can use the Tavily web search tool to fetch real-time information from the web for any queries not covered by the RAG pipeline, such as current events, general knowledge, or even topics unrelated to 'Sound'.

Deciding when to invoke a tool:
- Use the **RAG Pipeline Tool** if the user's input is related to 'Sound'.
- Use the **Tavily Web Search Tool** if the user's query is about 'Sound' that the document in RAG pipeline does not cover or requires real-time or broader web-based information.

Do not hallucinate your answer. Use the tools provided to provide the best answer possible to the user's query.

User Question: %q`

// PolicyMessage returns the system message that steers tool selection for
// query. It is built for every call and never stored in a session.
func PolicyMessage(query string) Message {
	return Message{
		Role:      session.RoleSystem,
		Content:   fmt.Sprintf(policyTemplate, query),
		CreatedAt: time.Now().UTC(),
	}
}
