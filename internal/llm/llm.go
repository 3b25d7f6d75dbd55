// Package llm talks to the language-model provider.
//
// Both calls return the raw response text; validating it is the caller's job
// (see package analysis).
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yashmulik1278/email-assistant-LLM/internal/types"
)

// Model is the language-model collaborator used by the analyzer.
type Model interface {
	// Extract asks for the structured extraction object for text.
	Extract(ctx context.Context, text string) (string, error)
	// Draft asks for a reply to text, given the extracted tone and urgency.
	Draft(ctx context.Context, sentiment types.Sentiment, priority types.Priority, knowledgeBase, text string) (string, error)
}

// DefaultKnowledgeBase is the fixed context handed to draft generation.
const DefaultKnowledgeBase = `- Our standard support hours are 9 AM to 6 PM, Monday to Friday.
- Password resets can be done by the user at our website's login page via the 'Forgot Password' link.
- Our premium plan costs $99/month and includes advanced analytics and priority support.
- For billing issues, users should be directed to the billing department by replying to this email and we will forward it.`

// LoadKnowledgeBase reads the knowledge base from path, or returns the
// default when path is empty.
func LoadKnowledgeBase(path string) (string, error) {
	if path == "" {
		return DefaultKnowledgeBase, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read knowledge base %s: %w", path, err)
	}
	kb := strings.TrimSpace(string(data))
	if kb == "" {
		return "", fmt.Errorf("knowledge base %s is empty", path)
	}
	return kb, nil
}

// ExtractionPrompt builds the structured extraction request for an email.
func ExtractionPrompt(text string) string {
	return fmt.Sprintf(`You are an expert data analyst. Your task is to analyze the following email and extract key information.

Analyze the email's content to determine its sentiment, priority, summarize the customer's core request, and extract any contact information found.

Respond ONLY with a single, minified JSON object with the following keys: "sentiment", "priority", "customer_request", "contact_info".
- "sentiment": Must be one of "Positive", "Negative", or "Neutral".
- "priority": Must be one of "Urgent" or "Not urgent".
- "customer_request": Must be a brief, one-sentence summary of what the customer wants.
- "contact_info": Must be a JSON object containing any phone numbers or alternate emails found. If none are found, this should be an empty object {}.

Email Content:
---
%s
---
`, text)
}

// DraftPrompt builds the reply-generation request for an email.
func DraftPrompt(sentiment types.Sentiment, priority types.Priority, knowledgeBase, text string) string {
	return fmt.Sprintf(`You are a professional and empathetic customer support assistant. Your task is to draft a response to a customer's email.

**Analysis of the incoming email:**
- Customer Sentiment: %s
- Priority Level: %s

**Your Instructions:**
1. Acknowledge and Empathize: If the sentiment is 'Negative', start by acknowledging the customer's frustration.
2. Maintain a Professional Tone: Be friendly, helpful, and concise.
3. Use the Knowledge Base: Use the provided knowledge base to answer questions accurately.
4. Provide Clear Next Steps: Either solve the user's problem directly or explain what will happen next.
5. Do NOT include a generic sign-off like "Best regards", as this will be added later.

**Knowledge Base for Your Response:**
---
%s
---

**Original Customer Email:**
---
%s
---

**Draft your response below:**
`, sentiment, priority, knowledgeBase, text)
}
