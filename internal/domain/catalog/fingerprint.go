package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint 计算记录核心内容的 sha256 指纹。
// 四个字段统一小写后以单个空格连接;指纹与 source_id 无关,
// 内容相同的记录在不同数据源下得到相同指纹,用于去重与变更检测。
func Fingerprint(name, description, industry, location string) string {
	text := strings.ToLower(strings.Join([]string{name, description, industry, location}, " "))
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
