package schema

import (
	"bytes"
	"encoding/json"
)

const (
	DefaultVersion          = "1.0.0"
	DefaultAWSRegion        = "us-east-1"
	DefaultRefreshFrequency = "daily"
	DefaultPersonaName      = "Assistant"
	DefaultPersonaTone      = "professional but approachable"
	DefaultVerbosity        = "concise"
)

// newDocument returns a document pre-populated with every default. Decoding
// on top of it leaves absent keys at their default values.
func newDocument() *Document {
	return &Document{
		Version: DefaultVersion,
		LLMParameters: LLMParameters{
			Temperature:   0.3,
			MaxTokens:     1024,
			TopP:          0.9,
			StopSequences: []string{},
			RetryPolicy: RetryPolicy{
				MaxRetries:        3,
				InitialDelayMS:    1000,
				BackoffMultiplier: 2.0,
				MaxDelayMS:        10000,
			},
			TimeoutMS: 30000,
		},
		DataContext: DataContext{
			SampleQuestions: []SampleQuestion{},
		},
		SystemPrompt: SystemPrompt{
			Persona: Persona{
				Name:              DefaultPersonaName,
				Tone:              DefaultPersonaTone,
				Verbosity:         DefaultVerbosity,
				PersonalityTraits: []string{},
			},
			ResponseGuidelines: []string{},
			ContextInjection: ContextInjection{
				IncludeCurrentDate:      true,
				IncludeFiscalPeriod:     true,
				IncludeUserRole:         false,
				IncludeDashboardContext: true,
			},
			FewShotExamples: []FewShotExample{},
		},
		ConversationMemory: ConversationMemory{
			Enabled:               true,
			MaxTurns:              10,
			SummarizeAfterTurns:   8,
			SessionTimeoutMinutes: 30,
			ContextToPreserve:     []string{},
			ContextToForget:       []string{},
		},
	}
}

// applyDefaults fills what decoding on top of newDocument cannot: defaults
// inside freshly decoded slice elements or pointer sections, and lists the
// input set to null.
func applyDefaults(doc *Document) {
	if doc.Version == "" {
		doc.Version = DefaultVersion
	}
	if b := doc.LLMCredentials.AnthropicBedrock; b != nil && b.Region == "" {
		b.Region = DefaultAWSRegion
	}
	for i := range doc.DataContext.Datasources {
		if doc.DataContext.Datasources[i].RefreshFrequency == "" {
			doc.DataContext.Datasources[i].RefreshFrequency = DefaultRefreshFrequency
		}
	}

	for _, raw := range []*json.RawMessage{
		&doc.Guardrails, &doc.StructuredOutput, &doc.Elicitation, &doc.MCPTools,
		&doc.MCPResources, &doc.Dashboard, &doc.Logging, &doc.DataContext.SemanticLayer,
	} {
		compactRaw(raw)
	}

	emptyIfNil(&doc.LLMParameters.StopSequences)
	emptyIfNil(&doc.SystemPrompt.Persona.PersonalityTraits)
	emptyIfNil(&doc.SystemPrompt.ResponseGuidelines)
	emptyIfNil(&doc.ConversationMemory.ContextToPreserve)
	emptyIfNil(&doc.ConversationMemory.ContextToForget)
	if doc.DataContext.SampleQuestions == nil {
		doc.DataContext.SampleQuestions = []SampleQuestion{}
	}
	if doc.SystemPrompt.FewShotExamples == nil {
		doc.SystemPrompt.FewShotExamples = []FewShotExample{}
	}
}

func emptyIfNil(s *[]string) {
	if *s == nil {
		*s = []string{}
	}
}

// compactRaw normalises whitespace in a raw section so documents compare
// equal regardless of how their input was indented.
func compactRaw(raw *json.RawMessage) {
	if len(*raw) == 0 {
		return
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, *raw); err == nil {
		*raw = buf.Bytes()
	}
}
