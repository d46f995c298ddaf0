package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/iliyamo/microwire-quality/internal/config"
	"github.com/iliyamo/microwire-quality/internal/model"
)

var (
	ErrAssistantDisabled = errors.New("assistant not configured")
	ErrAssistantFailed   = errors.New("assistant request failed")
)

// ChatTurn is one message sent to the completion API.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompleter returns the assistant reply to a conversation.
type ChatCompleter interface {
	Complete(ctx context.Context, turns []ChatTurn) (string, error)
}

// OpenAICompatClient calls any OpenAI-compatible /chat/completions endpoint.
// BaseURL should include the version prefix, e.g. "http://localhost:8000/v1".
type OpenAICompatClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewOpenAICompatClient(cfg config.AssistantConfig) *OpenAICompatClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAICompatClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      strings.TrimSpace(cfg.Model),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type oaiChatRequest struct {
	Model    string     `json:"model"`
	Messages []ChatTurn `json:"messages"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message ChatTurn `json:"message"`
	} `json:"choices"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OpenAICompatClient) Complete(ctx context.Context, turns []ChatTurn) (string, error) {
	if c.baseURL == "" || c.model == "" {
		return "", ErrAssistantDisabled
	}
	body, err := json.Marshal(oaiChatRequest{Model: c.model, Messages: turns})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return "", fmt.Errorf("chat completion api error: %s", errResp.Error.Message)
		}
		return "", fmt.Errorf("chat completion api error: %s", resp.Status)
	}
	var out oaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("chat completion decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("empty chat completion response")
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty chat completion response")
	}
	return text, nil
}

// ChatStore is the persistence the chat service needs.
type ChatStore interface {
	GetSession(ctx context.Context, id, userID uint64) (*model.ChatSession, error)
	AppendMessage(ctx context.Context, m *model.ChatMessage) error
	RecentMessages(ctx context.Context, sessionID uint64, limit int) ([]model.ChatMessage, error)
}

// ChatService forwards a user's question to the assistant together with the
// recent history of the session and stores both sides of the exchange.
type ChatService struct {
	store        ChatStore
	llm          ChatCompleter
	systemPrompt string
	historyLimit int
	log          *slog.Logger
}

func NewChatService(store ChatStore, llm ChatCompleter, cfg config.AssistantConfig, log *slog.Logger) *ChatService {
	return &ChatService{
		store:        store,
		llm:          llm,
		systemPrompt: cfg.SystemPrompt,
		historyLimit: cfg.HistoryLimit,
		log:          log,
	}
}

// Ask records content as a user message in the session, asks the assistant
// and records the reply.  The user message is kept even when the assistant
// fails.  Ownership errors from the store are returned unchanged.
func (s *ChatService) Ask(ctx context.Context, userID, sessionID uint64, content string) (*model.ChatMessage, error) {
	if _, err := s.store.GetSession(ctx, sessionID, userID); err != nil {
		return nil, err
	}

	var history []model.ChatMessage
	if s.historyLimit > 0 {
		var err error
		history, err = s.store.RecentMessages(ctx, sessionID, s.historyLimit)
		if err != nil {
			return nil, err
		}
	}

	question := &model.ChatMessage{SessionID: sessionID, Role: model.ChatRoleUser, Content: content}
	if err := s.store.AppendMessage(ctx, question); err != nil {
		return nil, err
	}

	turns := make([]ChatTurn, 0, len(history)+2)
	if strings.TrimSpace(s.systemPrompt) != "" {
		turns = append(turns, ChatTurn{Role: "system", Content: s.systemPrompt})
	}
	for _, m := range history {
		turns = append(turns, ChatTurn{Role: m.Role, Content: m.Content})
	}
	turns = append(turns, ChatTurn{Role: model.ChatRoleUser, Content: content})

	text, err := s.llm.Complete(ctx, turns)
	if err != nil {
		if errors.Is(err, ErrAssistantDisabled) {
			return nil, err
		}
		s.log.Error("assistant completion failed", "session_id", sessionID, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrAssistantFailed, err)
	}

	reply := &model.ChatMessage{SessionID: sessionID, Role: model.ChatRoleAssistant, Content: text}
	if err := s.store.AppendMessage(ctx, reply); err != nil {
		return nil, err
	}
	return reply, nil
}
