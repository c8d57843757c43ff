package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateOTP は暗号的に安全な6桁のワンタイムパスコードを生成する。
// 先頭が0の場合もゼロ埋めした6文字を返す。
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
