// Package schema validates and renders chatbot configuration documents.
//
// A document arrives as raw JSON or YAML, is decoded strictly (unknown keys
// are rejected), has its defaults filled in and is checked field by field.
// The registry only ever reads the embedded logical name; everything else is
// owned here.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Provider names the configured LLM backend.
type Provider string

const (
	ProviderNone             Provider = ""
	ProviderAnthropicBedrock Provider = "anthropic_bedrock"
	ProviderOpenAI           Provider = "openai"
)

// Document is a validated chatbot configuration.
//
// Sections the registry has no opinion about (guardrails, structured output,
// MCP settings and so on) are carried as raw JSON objects and written back
// unchanged.
type Document struct {
	Version            string             `json:"version" validate:"semver"`
	Metadata           Metadata           `json:"metadata"`
	LLMCredentials     LLMCredentials     `json:"llm_credentials"`
	LLMParameters      LLMParameters      `json:"llm_parameters"`
	DataContext        DataContext        `json:"data_context"`
	SystemPrompt       SystemPrompt       `json:"system_prompt"`
	Guardrails         json.RawMessage    `json:"guardrails,omitempty" validate:"omitempty,jsonobject"`
	StructuredOutput   json.RawMessage    `json:"structured_output,omitempty" validate:"omitempty,jsonobject"`
	ConversationMemory ConversationMemory `json:"conversation_memory"`
	Elicitation        json.RawMessage    `json:"elicitation,omitempty" validate:"omitempty,jsonobject"`
	MCPTools           json.RawMessage    `json:"mcp_tools,omitempty" validate:"omitempty,jsonobject"`
	MCPResources       json.RawMessage    `json:"mcp_resources,omitempty" validate:"omitempty,jsonobject"`
	Dashboard          json.RawMessage    `json:"dashboard_integration,omitempty" validate:"omitempty,jsonobject"`
	Logging            json.RawMessage    `json:"logging,omitempty" validate:"omitempty,jsonobject"`
}

// Metadata identifies a configuration. Name is the logical name the registry
// keeps unique.
type Metadata struct {
	Name        string     `json:"name" validate:"required,max=100,kebab"`
	Description string     `json:"description" validate:"max=500"`
	Created     *Timestamp `json:"created,omitempty"`
	Modified    *Timestamp `json:"modified,omitempty"`
	Author      string     `json:"author" validate:"required"`
}

type LLMCredentials struct {
	AnthropicBedrock *BedrockCredentials `json:"anthropic_bedrock,omitempty"`
	OpenAI           *OpenAICredentials  `json:"openai,omitempty"`
}

// Provider reports which backend is configured. Only meaningful on a
// validated document, where exactly one is set.
func (c LLMCredentials) Provider() Provider {
	switch {
	case c.AnthropicBedrock != nil:
		return ProviderAnthropicBedrock
	case c.OpenAI != nil:
		return ProviderOpenAI
	default:
		return ProviderNone
	}
}

type BedrockCredentials struct {
	AccessKeyID     string `json:"aws_access_key_id" validate:"required,min=16,max=128"`
	SecretAccessKey string `json:"aws_secret_access_key" validate:"required"`
	Region          string `json:"aws_region" validate:"awsregion"`
}

type OpenAICredentials struct {
	APIKey         string  `json:"api_key" validate:"required"`
	OrganizationID *string `json:"organization_id,omitempty"`
}

type LLMParameters struct {
	Model         string      `json:"model" validate:"required"`
	Temperature   float64     `json:"temperature" validate:"gte=0,lte=1"`
	MaxTokens     int         `json:"max_tokens" validate:"gte=100,lte=8192"`
	TopP          float64     `json:"top_p" validate:"gte=0,lte=1"`
	StopSequences []string    `json:"stop_sequences"`
	RetryPolicy   RetryPolicy `json:"retry_policy"`
	TimeoutMS     int         `json:"timeout_ms" validate:"gte=5000,lte=120000"`
}

type RetryPolicy struct {
	MaxRetries        int     `json:"max_retries" validate:"gte=0,lte=10"`
	InitialDelayMS    int     `json:"initial_delay_ms" validate:"gte=100,lte=30000"`
	BackoffMultiplier float64 `json:"backoff_multiplier" validate:"gte=1,lte=5"`
	MaxDelayMS        int     `json:"max_delay_ms" validate:"gte=1000,lte=60000"`
}

type DataContext struct {
	Datasources     []Datasource     `json:"datasources" validate:"min=1,dive"`
	SemanticLayer   json.RawMessage  `json:"semantic_layer,omitempty" validate:"omitempty,jsonobject"`
	SampleQuestions []SampleQuestion `json:"sample_questions" validate:"dive"`
}

type Datasource struct {
	Name               string `json:"name" validate:"required"`
	PortalDatasourceID string `json:"portal_datasource_id" validate:"required"`
	Description        string `json:"description" validate:"required"`
	PrimaryEntity      string `json:"primary_entity" validate:"required"`
	RefreshFrequency   string `json:"refresh_frequency"`
}

type SampleQuestion struct {
	Question       string `json:"question" validate:"required"`
	Interpretation string `json:"interpretation" validate:"required"`
	Datasource     string `json:"datasource" validate:"required"`
}

type SystemPrompt struct {
	BasePrompt         string           `json:"base_prompt" validate:"min=50,max=10000"`
	Persona            Persona          `json:"persona"`
	ResponseGuidelines []string         `json:"response_guidelines"`
	ContextInjection   ContextInjection `json:"context_injection"`
	FewShotExamples    []FewShotExample `json:"few_shot_examples" validate:"max=10,dive"`
}

type Persona struct {
	Name              string   `json:"name"`
	Tone              string   `json:"tone"`
	Verbosity         string   `json:"verbosity" validate:"oneof=concise moderate detailed"`
	PersonalityTraits []string `json:"personality_traits"`
}

type ContextInjection struct {
	IncludeCurrentDate      bool `json:"include_current_date"`
	IncludeFiscalPeriod     bool `json:"include_fiscal_period"`
	IncludeUserRole         bool `json:"include_user_role"`
	IncludeDashboardContext bool `json:"include_dashboard_context"`
}

type FewShotExample struct {
	User      string `json:"user" validate:"required"`
	Assistant string `json:"assistant" validate:"required"`
}

// ConversationMemory bounds how much history a chatbot keeps.
// SummarizeAfterTurns may not exceed MaxTurns.
type ConversationMemory struct {
	Enabled               bool     `json:"enabled"`
	MaxTurns              int      `json:"max_turns" validate:"gte=1,lte=50"`
	SummarizeAfterTurns   int      `json:"summarize_after_turns" validate:"gte=1,lte=50"`
	SessionTimeoutMinutes int      `json:"session_timeout_minutes" validate:"gte=5,lte=1440"`
	ContextToPreserve     []string `json:"context_to_preserve"`
	ContextToForget       []string `json:"context_to_forget"`
}

// Name returns the embedded logical name.
func (d *Document) Name() string {
	return d.Metadata.Name
}

// SetName replaces the embedded logical name. The caller re-validates.
func (d *Document) SetName(name string) {
	d.Metadata.Name = name
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	raw, err := json.Marshal(d)
	if err != nil {
		// Only reachable if a raw section holds invalid JSON, which Validate rejects.
		panic(fmt.Sprintf("schema: cloning document %q: %v", d.Metadata.Name, err))
	}
	out := &Document{}
	if err := json.Unmarshal(raw, out); err != nil {
		panic(fmt.Sprintf("schema: cloning document %q: %v", d.Metadata.Name, err))
	}
	return out
}

// Timestamp is an ISO 8601 instant. Values without a zone offset are read
// as UTC.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t, normalised to UTC.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t.UTC()}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 and the zone-less ISO forms.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
