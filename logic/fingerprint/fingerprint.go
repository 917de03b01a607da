package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"contract-guard/types"
)

const version = "v1"

// Compute 计算提交内容的指纹
// 文本折叠空白，行业与类别折叠大小写，类别去重排序后参与摘要
func Compute(sub types.ContractSubmission) (types.Fingerprint, error) {
	text := NormalizeText(sub.Text)
	if text == "" {
		return "", fmt.Errorf("%w: contract text is empty", types.ErrInvalidInput)
	}
	n := sub.Normalized()

	cats := make([]string, len(n.Categories))
	for i, c := range n.Categories {
		cats[i] = string(c)
	}

	h := sha256.New()
	h.Write([]byte(version))
	h.Write([]byte{0})
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(n.Industry))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(cats, ",")))
	return types.Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

// NormalizeText 去掉首尾空白，连续空白折叠为单个空格
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
