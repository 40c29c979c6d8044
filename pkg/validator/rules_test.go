package validator

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	alnum       = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	usernameSet = alnum + "_-"
	noiseSet    = alnum + "_-!@ .中é\t"
)

// randomString 从字符集中随机生成指定长度的字符串
func randomString(r *rand.Rand, charset string, n int) string {
	runes := []rune(charset)
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteRune(runes[r.Intn(len(runes))])
	}
	return sb.String()
}

// onlyFrom 字符串的每个字符都属于 charset
func onlyFrom(s, charset string) bool {
	for _, c := range s {
		if !strings.ContainsRune(charset, c) {
			return false
		}
	}
	return true
}

func TestIsUsername_Property(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 5000; i++ {
		n := r.Intn(25)
		charset := usernameSet
		if i%2 == 1 {
			charset = noiseSet
		}
		s := randomString(r, charset, n)
		want := len(s) >= 5 && len(s) <= 20 && onlyFrom(s, usernameSet)
		assert.Equal(t, want, IsUsername(s), "username %q", s)
	}
}

func TestIsUsername(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"最短5位", "user1", true},
		{"最长20位", strings.Repeat("a", 20), true},
		{"下划线与中划线", "user_01-x", true},
		{"过短", "abcd", false},
		{"过长", strings.Repeat("a", 21), false},
		{"包含空格", "user 01", false},
		{"包含中文", "用户名abcde", false},
		{"空字符串", "", false},
		{"末尾换行", "user_01\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUsername(tt.input))
		})
	}
}

func TestIsPassword_Property(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 5000; i++ {
		n := r.Intn(25)
		charset := alnum
		if i%2 == 1 {
			charset = noiseSet
		}
		s := randomString(r, charset, n)
		want := len(s) >= 8 && len(s) <= 20 && onlyFrom(s, alnum)
		assert.Equal(t, want, IsPassword(s), "password %q", s)
	}
}

func TestIsPassword(t *testing.T) {
	assert.True(t, IsPassword("abcdef12"))
	assert.True(t, IsPassword(strings.Repeat("Z9", 10)))
	assert.False(t, IsPassword("abcdef1"))
	assert.False(t, IsPassword(strings.Repeat("a", 21)))
	assert.False(t, IsPassword("abcdef_12"))
}

func TestIsPasswordConfirmed(t *testing.T) {
	assert.True(t, IsPasswordConfirmed("abcdef12", "abcdef12"))
	assert.True(t, IsPasswordConfirmed("", ""))
	assert.False(t, IsPasswordConfirmed("abcdef12", "abcdef13"))
	assert.False(t, IsPasswordConfirmed("abcdef12", "ABCDEF12"))
	assert.False(t, IsPasswordConfirmed("abcdef12", "abcdef12 "))
}

func TestIsMobile_Property(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 5000; i++ {
		var s string
		switch i % 3 {
		case 0:
			s = "1" + randomString(r, "0123456789", 10)
		case 1:
			s = randomString(r, "0123456789", r.Intn(14))
		default:
			s = "1" + randomString(r, "0123456789a ", 10)
		}
		want := len(s) == 11 && s[0] == '1' && s[1] >= '3' && s[1] <= '9' && onlyFrom(s, "0123456789")
		assert.Equal(t, want, IsMobile(s), "mobile %q", s)
	}
}

func TestIsMobile(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"13812345678", true},
		{"19900000000", true},
		{"12812345678", false},
		{"23812345678", false},
		{"1381234567", false},
		{"138123456789", false},
		{"1381234567a", false},
		{"+8613812345678", false},
		{"１3812345678", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsMobile(tt.input), tt.input)
	}
}

func TestIsImageCodeAndSmsCode(t *testing.T) {
	assert.True(t, IsImageCode("ab12"))
	assert.True(t, IsImageCode("验证码字"))
	assert.False(t, IsImageCode("abc"))
	assert.False(t, IsImageCode("abcde"))

	assert.True(t, IsSmsCode("123456"))
	assert.False(t, IsSmsCode("12345"))
	assert.False(t, IsSmsCode("1234567"))
	assert.False(t, IsSmsCode(""))
}
