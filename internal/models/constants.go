package models

const (
	// NoAnswerText is returned verbatim when the index holds nothing
	// relevant to a question.
	NoAnswerText = "The answer is not available in the indexed document."

	ThinkTag = `(?s)<think>.*?</think>`
)

var (
	RAGSystemPrompt = `You are a helpful assistant. Use the provided context to answer the query.
Answer ONLY from the context. If the context does not contain the information needed, reply exactly: "` + NoAnswerText + `"`

	RAGUserPromptTemplate = `Context:
%s
Query: %s`
)
