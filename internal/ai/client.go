// Package ai turns free-text recurrence descriptions ("every 2 weeks on
// Monday", "on the last day of each month until December") into structured
// recurrence rules using an OpenAI-compatible chat API with strict JSON
// schema output.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/kdantuono/money-wise-sub010/internal/recur"
)

type Client struct {
	client *openai.Client
	model  string
}

func New(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

const systemPromptTemplate = `You convert a natural-language description of a recurring financial obligation into a structured recurrence rule.

Current date: %s

Rules:
- frequency is one of DAILY, WEEKLY, BIWEEKLY, MONTHLY, QUARTERLY, YEARLY.
- interval is the multiplier ("every 3 months" -> MONTHLY with interval 3). "Every 2 weeks" and "biweekly" -> BIWEEKLY with interval 1.
- day_of_week uses 0 for Sunday through 6 for Saturday and is only set for WEEKLY rules.
- day_of_month is 1-31, or -1 for "the last day of the month", and is only set for MONTHLY, QUARTERLY or YEARLY rules.
- end_date (YYYY-MM-DD) and end_count are only set when the text bounds the series ("until June", "for 12 payments"). Resolve relative dates against the current date.
- confidence reflects how unambiguous the text was, between 0 and 1.
- Set frequency to an empty string when the text does not describe a recurrence at all.`

func systemPrompt(now time.Time) string {
	return fmt.Sprintf(systemPromptTemplate, now.Format("2006-01-02 (Monday)"))
}

var ruleSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"frequency": {
			"type": "string",
			"enum": ["DAILY", "WEEKLY", "BIWEEKLY", "MONTHLY", "QUARTERLY", "YEARLY", ""],
			"description": "Recurrence frequency, empty when the text is not a recurrence"
		},
		"interval": {
			"type": "integer",
			"minimum": 1,
			"description": "Every N frequency units"
		},
		"day_of_week": {
			"type": ["integer", "null"],
			"description": "0=Sunday..6=Saturday, WEEKLY only"
		},
		"day_of_month": {
			"type": ["integer", "null"],
			"description": "1-31, or -1 for the last day of the month"
		},
		"end_date": {
			"type": ["string", "null"],
			"description": "Inclusive end date as YYYY-MM-DD"
		},
		"end_count": {
			"type": ["integer", "null"],
			"description": "Maximum number of occurrences"
		},
		"confidence": {
			"type": "number",
			"minimum": 0,
			"maximum": 1
		}
	},
	"required": ["frequency", "interval", "confidence"],
	"additionalProperties": false
}`)

type ruleResponse struct {
	Frequency  string  `json:"frequency"`
	Interval   int     `json:"interval"`
	DayOfWeek  *int    `json:"day_of_week"`
	DayOfMonth *int    `json:"day_of_month"`
	EndDate    *string `json:"end_date"`
	EndCount   *int    `json:"end_count"`
	Confidence float64 `json:"confidence"`
}

// ParsedRule is the outcome of a successful parse.
type ParsedRule struct {
	Rule       recur.Rule
	Confidence float64
}

// ParseRecurrence asks the model to interpret text as a recurrence rule.
// now anchors relative dates like "until next March".
func (c *Client) ParseRecurrence(ctx context.Context, text string, now time.Time) (*ParsedRule, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt(now),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "recurrence_rule",
				Schema: ruleSchema,
				Strict: true,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call AI API: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from AI")
	}

	var parsed ruleResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}
	if parsed.Frequency == "" {
		return nil, fmt.Errorf("text does not describe a recurrence: %q", text)
	}

	rule := recur.Rule{
		Frequency:  recur.Frequency(parsed.Frequency),
		Interval:   parsed.Interval,
		DayOfWeek:  parsed.DayOfWeek,
		DayOfMonth: parsed.DayOfMonth,
		EndCount:   parsed.EndCount,
	}
	if parsed.EndDate != nil && *parsed.EndDate != "" {
		end, err := time.Parse("2006-01-02", *parsed.EndDate)
		if err != nil {
			return nil, fmt.Errorf("AI returned an invalid end date %q: %w", *parsed.EndDate, err)
		}
		rule.EndDate = &end
	}
	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("AI returned an invalid rule: %w", err)
	}

	return &ParsedRule{Rule: rule, Confidence: parsed.Confidence}, nil
}
