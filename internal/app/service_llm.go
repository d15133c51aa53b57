package app

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"curator/api/internal/format"
	"curator/api/internal/llm"
	"curator/api/internal/prompts"
)

// FaqDraft is an LLM-proposed FAQ derived from an RFP answer.
type FaqDraft struct {
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	SourceRfpID int64  `json:"sourceRfpId"`
}

const faqDraftPrompt = `You are helping turn internal RFP answers into public FAQ entries. Rewrite the question so it reads naturally for a public help center, and rewrite the answer so it is self-contained, concise and free of customer-specific or confidential details.

Original question:
%s

Original answer:
%s

Respond only in this format:
QUESTION:
[rewritten question]

ANSWER:
[rewritten answer]`

var (
	labelQuestion = regexp.MustCompile(`QUESTION:\s*\n([\s\S]*?)\n\s*\nANSWER:`)
	labelAnswer   = regexp.MustCompile(`ANSWER:\s*\n([\s\S]*)$`)
)

// DraftFaq asks the model to derive an FAQ from an RFP record.
func (s *Service) DraftFaq(ctx context.Context, rfpID int64) (FaqDraft, error) {
	record, err := s.store.GetRfpQA(ctx, rfpID)
	if err != nil {
		return FaqDraft{}, err
	}

	reply, err := s.llm.Complete(ctx, llm.Request{
		Model:       s.llmModel,
		Messages:    []llm.Message{{Role: "user", Content: fmt.Sprintf(faqDraftPrompt, record.Question, record.Answer)}},
		Temperature: 0.7,
		MaxTokens:   2000,
	})
	if err != nil {
		return FaqDraft{}, err
	}

	question, answer := "", ""
	if m := labelQuestion.FindStringSubmatch(reply.Content); m != nil {
		question = strings.TrimSpace(m[1])
	}
	if m := labelAnswer.FindStringSubmatch(reply.Content); m != nil {
		answer = strings.TrimSpace(m[1])
	}
	if question == "" {
		return FaqDraft{}, &llm.ParseError{Missing: "question"}
	}
	if answer == "" {
		return FaqDraft{}, &llm.ParseError{Missing: "answer"}
	}
	return FaqDraft{Question: question, Answer: answer, SourceRfpID: rfpID}, nil
}

// FaqDialogueInput is one turn of the FAQ refinement dialogue. Question
// and Answer carry the current draft the model may revise.
type FaqDialogueInput struct {
	UserInput string        `json:"userInput"`
	History   []llm.Message `json:"history"`
	Question  string        `json:"question"`
	Answer    string        `json:"answer"`
}

// FaqDialogueResult mirrors the shape the edit form consumes: either a
// plain assistant message or an update_faq call with revised fields.
type FaqDialogueResult struct {
	FunctionCall string `json:"functionCall,omitempty"`
	Question     string `json:"question,omitempty"`
	Answer       string `json:"answer,omitempty"`
	Message      string `json:"message,omitempty"`
}

var updateFaqTool = llm.Tool{
	Name:        llm.ToolUpdateFaq,
	Description: "Replace the current FAQ draft with a revised question and answer",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"question": {"type": "string"},
			"answer": {"type": "string"}
		},
		"required": ["question", "answer"]
	}`),
}

const faqDialogueSystem = `You are refining a draft FAQ entry with an editor. The current draft is:

Question: %s
Answer: %s

When the editor asks for a change to the draft, call the update_faq function with the full revised question and answer. For anything else, answer in plain text. Never invent facts that are not supported by the draft or the conversation.`

// FaqDialogue runs one turn of the FAQ refinement conversation.
func (s *Service) FaqDialogue(ctx context.Context, input FaqDialogueInput) (FaqDialogueResult, error) {
	if strings.TrimSpace(input.UserInput) == "" {
		return FaqDialogueResult{}, validationError("userInput is required", nil)
	}

	messages := []llm.Message{{Role: "system", Content: fmt.Sprintf(faqDialogueSystem, input.Question, input.Answer)}}
	messages = append(messages, input.History...)
	messages = append(messages, llm.Message{Role: "user", Content: input.UserInput})

	reply, err := s.llm.Complete(ctx, llm.Request{
		Model:       s.llmModel,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   2000,
		Tools:       []llm.Tool{updateFaqTool},
	})
	if err != nil {
		return FaqDialogueResult{}, err
	}

	outcome := llm.ClassifyReply(reply)
	if outcome.Kind == llm.OutcomeToolCall && outcome.ToolName == llm.ToolUpdateFaq {
		var args struct {
			Question string `json:"question"`
			Answer   string `json:"answer"`
		}
		if err := json.Unmarshal(outcome.ToolArgs, &args); err != nil {
			return FaqDialogueResult{}, &llm.ParseError{Missing: "update_faq arguments"}
		}
		return FaqDialogueResult{
			FunctionCall: llm.ToolUpdateFaq,
			Question:     args.Question,
			Answer:       args.Answer,
		}, nil
	}
	return FaqDialogueResult{Message: outcome.Text}, nil
}

// KBDraftInput is the current article content for a one-shot rewrite.
type KBDraftInput struct {
	ArticleTitle    string `json:"article_title"`
	ArticleSubtitle string `json:"article_subtitle"`
	ArticleBody     string `json:"article_body"`
	Category        string `json:"category"`
	Keywords        string `json:"keywords"`
}

// KBDraftResult carries the rewritten fields, display formatting applied.
type KBDraftResult struct {
	Subtitle string `json:"subtitle"`
	Body     string `json:"body"`
	Keywords string `json:"keywords,omitempty"`
}

// DraftKBEntry runs the quick-update prompt against an article and
// demands a fully structured reply.
func (s *Service) DraftKBEntry(ctx context.Context, input KBDraftInput) (KBDraftResult, error) {
	if strings.TrimSpace(input.ArticleTitle) == "" {
		return KBDraftResult{}, validationError("article_title is required", nil)
	}

	template, err := s.prompts.Get(ctx, prompts.QuickUpdate)
	if err != nil {
		return KBDraftResult{}, err
	}
	prompt := prompts.Render(template, prompts.Vars{
		Title:    input.ArticleTitle,
		Subtitle: input.ArticleSubtitle,
		Body:     input.ArticleBody,
		Category: input.Category,
		Keywords: input.Keywords,
	})

	reply, err := s.llm.Complete(ctx, llm.Request{
		Model:       s.llmModel,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0.7,
		MaxTokens:   4000,
	})
	if err != nil {
		return KBDraftResult{}, err
	}

	sections, err := llm.ParseResponse(reply.Content, true)
	if err != nil {
		return KBDraftResult{}, err
	}
	return KBDraftResult{
		Subtitle: format.Subtitle(sections.Subtitle),
		Body:     format.Body(sections.Body),
		Keywords: sections.Keywords,
	}, nil
}

// KBDialogueInput is one turn of the interactive article conversation.
type KBDialogueInput struct {
	UserInput string        `json:"userInput"`
	History   []llm.Message `json:"history"`
	Entry     KBDraftInput  `json:"entry"`
}

// KBDialogueResult returns the assistant text plus any field updates the
// reply carried.
type KBDialogueResult struct {
	Response     string         `json:"response"`
	UpdatedEntry *KBDraftResult `json:"updatedEntry,omitempty"`
}

// KBDialogue runs one turn of the article conversation. An existing
// article uses the interactive prompt; a blank one gets the new-entry
// prompt.
func (s *Service) KBDialogue(ctx context.Context, input KBDialogueInput) (KBDialogueResult, error) {
	if strings.TrimSpace(input.UserInput) == "" {
		return KBDialogueResult{}, validationError("userInput is required", nil)
	}

	name := prompts.Interactive
	if strings.TrimSpace(input.Entry.ArticleBody) == "" && strings.TrimSpace(input.Entry.ArticleSubtitle) == "" {
		name = prompts.NewEntry
	}
	template, err := s.prompts.Get(ctx, name)
	if err != nil {
		return KBDialogueResult{}, err
	}
	system := prompts.Render(template, prompts.Vars{
		Title:    input.Entry.ArticleTitle,
		Subtitle: input.Entry.ArticleSubtitle,
		Body:     input.Entry.ArticleBody,
		Category: input.Entry.Category,
		Keywords: input.Entry.Keywords,
	})

	messages := []llm.Message{{Role: "system", Content: system}}
	messages = append(messages, input.History...)
	messages = append(messages, llm.Message{Role: "user", Content: input.UserInput})

	reply, err := s.llm.Complete(ctx, llm.Request{
		Model:       s.llmModel,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   2000,
	})
	if err != nil {
		return KBDialogueResult{}, err
	}

	outcome := llm.ClassifyReply(reply)
	result := KBDialogueResult{Response: outcome.Text}
	if outcome.Kind == llm.OutcomeUpdate {
		result.UpdatedEntry = &KBDraftResult{
			Subtitle: format.Subtitle(outcome.Fields.Subtitle),
			Body:     format.Body(outcome.Fields.Body),
			Keywords: outcome.Fields.Keywords,
		}
	}
	return result, nil
}
