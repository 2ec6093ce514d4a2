package assistant

// contextualizePrompt constrains the model to rephrasing: given prior turns it
// must produce a standalone question, never an answer.
const contextualizePrompt = "Given a chat history and the latest user question " +
	"which might reference context in the chat history, formulate a standalone " +
	"question which can be understood without the chat history. Do NOT answer " +
	"the question, just reformulate it if needed and otherwise return it as is."

// groundedAnswerPrompt pins the answer to the retrieved context. The model has
// to decline rather than answer from its own knowledge.
const groundedAnswerPrompt = "You are a helpful assistant for a booking and " +
	"appointment system. Use the following pieces of retrieved context to answer " +
	"the question. If you don't know the answer, just say that you don't know. " +
	"Keep the answer concise and helpful.\n\nContext: %s"
