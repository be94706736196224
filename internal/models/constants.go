package models

const (
	DefaultTopK      = 7
	ContextSeparator = "\n\n"
	ThinkTag         = `(?s)<think>.*?</think>`
)

var (
	GroundedPromptTemplate = `You are a helpful assistant. Answer the user's question based ONLY on the following context.
If the context does not contain the answer, state clearly that the answer is not found in the provided pages.
Do not use any external knowledge. Be concise.

Context:
%s

Question: %s

Answer:`

	// NotFoundPhrases mark a model answer as a refusal (matched case-insensitively).
	NotFoundPhrases = []string{
		"not found",
		"cannot answer",
		"do not contain the answer",
		"not in the provided context",
		"i cannot answer",
	}

	Greetings = []string{
		"hi",
		"hello",
		"hey",
		"greetings",
		"good morning",
		"good afternoon",
		"good evening",
	}

	GreetingResponse = "Hello! I'm ready to answer questions about your document. What would you like to know?"
	RefusalResponse  = "I can only answer questions based on the content of the document you provided. Please ask something related to the PDF."
	WelcomeTemplate  = "Hello %s! I'm ready to help you explore %s (%s). What would you like to know?"
)
