package config

// Default prompt and notice texts. Each can be overridden through the environment.
const (
	DefaultBooleanPrompt      = `You only answer with "yes" or "no".`
	DefaultContinuationPrompt = "Check if the question is related to discussion."
	DefaultTopicPrompt        = "Check if the input is related to Sui Move, Move or Sui Prover."
	DefaultRejectionText      = "This message is not related to Sui Move, Move or Sui Prover."
	DefaultPlaceholderText    = "Answering..."
)

// Prompts groups the texts injected into the classifier and the orchestrator.
// Load starts from DefaultPrompts and overrides only the variables that are set.
type Prompts struct {
	Boolean      string `env:"PROMPT_BOOLEAN"`
	Continuation string `env:"PROMPT_CONTINUATION"`
	Topic        string `env:"PROMPT_TOPIC"`
	Rejection    string `env:"TEXT_REJECTION"`
	Placeholder  string `env:"TEXT_PLACEHOLDER"`
}

// DefaultPrompts returns the built-in texts.
func DefaultPrompts() Prompts {
	return Prompts{
		Boolean:      DefaultBooleanPrompt,
		Continuation: DefaultContinuationPrompt,
		Topic:        DefaultTopicPrompt,
		Rejection:    DefaultRejectionText,
		Placeholder:  DefaultPlaceholderText,
	}
}
