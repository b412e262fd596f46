package provider

import (
	"fmt"
	"sync"
)

var (
	regMu     sync.RWMutex
	providers = make(map[string]LLMProvider)
)

// RegisterProvider 注册 LLM 供应商,同名覆盖。
func RegisterProvider(p LLMProvider) {
	regMu.Lock()
	defer regMu.Unlock()
	providers[p.Name()] = p
}

// GetProvider 按名称获取 LLM 供应商。
func GetProvider(name string) (LLMProvider, error) {
	regMu.RLock()
	defer regMu.RUnlock()
	p, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("LLM provider not found: %s", name)
	}
	return p, nil
}

// ListProviders 列出已注册的供应商名称。
func ListProviders() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}
