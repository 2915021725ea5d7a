package channel

import (
	"crypto/rand"
	"math/big"
)

// InviteCodeLen は招待コードの長さ。
const InviteCodeLen = 15

const inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewInviteCode は英数字からなるランダムな招待コードを生成する。
func NewInviteCode() (string, error) {
	b := make([]byte, InviteCodeLen)
	max := big.NewInt(int64(len(inviteAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = inviteAlphabet[n.Int64()]
	}
	return string(b), nil
}

// InviteLink はボットのディープリンクを返す。
func InviteLink(botUsername, code string) string {
	return "https://t.me/" + botUsername + "?start=" + InvitePrefix + code
}

// InvitePrefix は /start のペイロードで招待コードを表す接頭辞。
const InvitePrefix = "share_"
