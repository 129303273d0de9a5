package llm

// ProviderPreset describes one supported chat vendor. UseAnthropicSDK
// selects the messages-stream wire protocol; everything else speaks the
// OpenAI-compatible chat-completions protocol.
type ProviderPreset struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	BaseURL         string   `json:"base_url"`
	UseAnthropicSDK bool     `json:"-"`
	Models          []string `json:"models"`
}

var ProviderPresets = []ProviderPreset{
	{
		ID:      "openai",
		Name:    "OpenAI",
		BaseURL: "https://api.openai.com/v1",
		Models:  []string{"gpt-4o", "gpt-4o-mini", "gpt-3.5-turbo"},
	},
	{
		ID:              "anthropic",
		Name:            "Anthropic",
		BaseURL:         "https://api.anthropic.com",
		UseAnthropicSDK: true,
		Models:          []string{"claude-sonnet-4-20250514", "claude-3-5-haiku-20241022"},
	},
	{
		ID:      "deepseek",
		Name:    "DeepSeek",
		BaseURL: "https://api.deepseek.com/v1",
		Models:  []string{"deepseek-chat", "deepseek-reasoner"},
	},
	{
		ID:      "qwen",
		Name:    "通义千问 (Qwen)",
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Models:  []string{"qwen-max", "qwen-plus", "qwen-turbo"},
	},
	{
		ID:      "zhipu",
		Name:    "智谱 GLM",
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Models:  []string{"glm-4-plus", "glm-4-flash"},
	},
	{
		ID:      "moonshot",
		Name:    "月之暗面 (Moonshot)",
		BaseURL: "https://api.moonshot.cn/v1",
		Models:  []string{"moonshot-v1-8k", "moonshot-v1-32k", "moonshot-v1-128k"},
	},
	{
		ID:   "custom",
		Name: "Custom",
	},
}

// PresetByID looks up a provider preset; unknown ids report ok=false and
// are treated as OpenAI-compatible.
func PresetByID(id string) (ProviderPreset, bool) {
	for _, p := range ProviderPresets {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderPreset{}, false
}
