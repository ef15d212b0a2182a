package models

import "time"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	StrategyFixed    = "fixed"
	StrategySemantic = "semantic"

	DefaultNamespace    = "documents"
	DefaultVectorSize   = 384
	DefaultChunkSize    = 500
	DefaultPreviewChars = 500
	DefaultTopK         = 5
	DefaultSessionTTL   = time.Hour

	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	EmailRegex = `^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`
	PhoneRegex = `^(97|98)\d{8}$`

	InsufficientInformation = "I don't have enough information to answer that"
)

var (
	RAGSystemPrompt = `You are a helpful AI assistant that answers questions based on provided document excerpts.

Rules:
- Answer based ONLY on the provided context
- If the context doesn't contain the answer, say "` + InsufficientInformation + `"
- Be concise and clear
- Cite which excerpt number [1], [2], etc. you used`

	ContextHeader = "Based on the following document excerpts:\n\n"

	ExtractionSystemPrompt = "You are a data extraction assistant. Return only valid JSON."

	// %[1]s is the user message, %[2]s today's date.
	ExtractionPromptTemplate = `Extract the following information from the user's message. Return only a JSON object with exact keys:
- "name": person's full name or null if not provided
- "email": email address or null if not provided
- "phone_number": contact number or null if not provided
- "date": date in YYYY-MM-DD format or null if not provided
- "time": time in HH:MM 24-hour format or null if not provided

User message: "%[1]s"

Rules:
- If the date is relative (like "tomorrow", "next Monday"), convert it to an actual date
- Convert time to 24-hour format (3pm -> 15:00)
- Today's date is %[2]s
- Return ONLY valid JSON, no explanations

Example output:
{"name": "John Doe", "email": "john@example.com", "phone_number": "9812345678", "date": "2024-12-01", "time": "15:00"}
`
)
