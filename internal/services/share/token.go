package share

import (
	"crypto/rand"
	"fmt"
	"io"
)

const (
	TokenLength   = 32
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// 大于等于该值的随机字节丢弃，保证每个字符均匀分布
	tokenByteLimit = 256 - 256%len(tokenAlphabet)
)

// GenerateToken 生成 32 位字母数字分享 token，随机源为 crypto/rand
func GenerateToken() (string, error) {
	return generateTokenFrom(rand.Reader)
}

func generateTokenFrom(r io.Reader) (string, error) {
	out := make([]byte, 0, TokenLength)
	buf := make([]byte, TokenLength+TokenLength/4)
	for len(out) < TokenLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("读取随机数失败: %w", err)
		}
		for _, b := range buf {
			if int(b) >= tokenByteLimit {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == TokenLength {
				break
			}
		}
	}
	return string(out), nil
}
