package providers

import (
	"sort"
	"strings"
)

// =============================================================================
// 🏷️ OpenAI 兼容服务商预设
// =============================================================================

// Vendor 描述一个 OpenAI 兼容服务商的默认接入参数
type Vendor struct {
	Name         string
	BaseURL      string
	EndpointPath string
	ModelsPath   string
	DefaultModel string
}

var vendors = map[string]Vendor{
	"openai": {
		Name: "openai", BaseURL: "https://api.openai.com",
		EndpointPath: "/v1/chat/completions", ModelsPath: "/v1/models", DefaultModel: "gpt-4o-mini",
	},
	"deepseek": {
		Name: "deepseek", BaseURL: "https://api.deepseek.com",
		EndpointPath: "/v1/chat/completions", ModelsPath: "/v1/models", DefaultModel: "deepseek-chat",
	},
	// 通义千问 DashScope 兼容模式，路径不带 /v1
	"qwen": {
		Name: "qwen", BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		EndpointPath: "/chat/completions", ModelsPath: "/models", DefaultModel: "qwen-plus",
	},
	"glm": {
		Name: "glm", BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		EndpointPath: "/chat/completions", ModelsPath: "/models", DefaultModel: "glm-4-flash",
	},
	"kimi": {
		Name: "kimi", BaseURL: "https://api.moonshot.cn",
		EndpointPath: "/v1/chat/completions", ModelsPath: "/v1/models", DefaultModel: "moonshot-v1-8k",
	},
	"together": {
		Name: "together", BaseURL: "https://api.together.xyz",
		EndpointPath: "/v1/chat/completions", ModelsPath: "/v1/models", DefaultModel: "meta-llama/Llama-3.3-70B-Instruct-Turbo",
	},
	"openrouter": {
		Name: "openrouter", BaseURL: "https://openrouter.ai/api",
		EndpointPath: "/v1/chat/completions", ModelsPath: "/v1/models", DefaultModel: "openai/gpt-4o-mini",
	},
	"ollama": {
		Name: "ollama", BaseURL: "http://localhost:11434",
		EndpointPath: "/v1/chat/completions", ModelsPath: "/v1/models", DefaultModel: "llama3.1",
	},
}

// LookupVendor 按名称（大小写不敏感）查找预设；空名称视为 openai
func LookupVendor(name string) (Vendor, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "openai"
	}
	v, ok := vendors[name]
	return v, ok
}

// VendorNames 返回所有预设名称（已排序）
func VendorNames() []string {
	names := make([]string, 0, len(vendors))
	for name := range vendors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve 用预设补全未显式配置的 baseURL 与模型
func (v Vendor) Resolve(baseURL, model string) (string, string) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = v.BaseURL
	}
	if strings.TrimSpace(model) == "" {
		model = v.DefaultModel
	}
	return baseURL, model
}
