package validator

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegisterMapValidator() *MapValidator {
	keys := []string{"username", "password", "mobile", "allow"}
	return &MapValidator{
		ParentNameSpace: "register",
		RequiredKeys:    keys,
		AllowedKeys:     keys,
		KeyValidators: map[string]func(value any) error{
			"username": StringKey(IsUsername, "invalid username"),
			"mobile":   StringKey(IsMobile, "invalid mobile"),
		},
	}
}

func TestValidateMap(t *testing.T) {
	tests := []struct {
		name     string
		kvs      map[string]any
		wantTags []string
		wantNS   []string
	}{
		{
			name: "所有验证都通过",
			kvs: map[string]any{
				"username": "user_01", "password": "abcdef12", "mobile": "13812345678", "allow": "on",
			},
		},
		{
			name:     "缺少必填键",
			kvs:      map[string]any{"username": "user_01", "password": "abcdef12", "allow": "on"},
			wantTags: []string{"required"},
			wantNS:   []string{"register.mobile"},
		},
		{
			name: "包含不允许的键",
			kvs: map[string]any{
				"username": "user_01", "password": "abcdef12", "mobile": "13812345678", "allow": "on", "is_staff": "1",
			},
			wantTags: []string{"allowed"},
			wantNS:   []string{"register.is_staff"},
		},
		{
			name: "自定义键验证失败",
			kvs: map[string]any{
				"username": "ab", "password": "abcdef12", "mobile": "12345", "allow": "on",
			},
			wantTags: []string{"custom", "custom"},
			wantNS:   []string{"register.mobile", "register.username"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateMap(tt.kvs, newRegisterMapValidator())
			if len(tt.wantTags) == 0 {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, len(tt.wantTags))
			for i, err := range errs {
				assert.Equal(t, tt.wantTags[i], err.Tag)
				assert.Equal(t, tt.wantNS[i], err.Namespace)
				assert.NotEmpty(t, err.Message)
			}
		})
	}
}

func TestValidateMap_Nil(t *testing.T) {
	assert.Nil(t, ValidateMap(map[string]any{"a": 1}, nil))
	assert.Nil(t, ValidateMap(nil, &MapValidator{AllowedKeys: []string{"a"}}))

	errs := ValidateMap(nil, &MapValidator{RequiredKeys: []string{"a"}})
	require.Len(t, errs, 1)
	assert.Equal(t, "required", errs[0].Tag)
}

func TestValidateMap_KeyTooLong(t *testing.T) {
	long := strings.Repeat("k", maxMapKeyLength+1)
	errs := ValidateMap(map[string]any{long: 1}, &MapValidator{AllowedKeys: []string{"a"}})
	require.Len(t, errs, 1)
	assert.Equal(t, "key_len", errs[0].Tag)
	assert.Equal(t, maxMapKeyLength+1, errs[0].Value)
}

func TestValidateMap_ValidatorPanic(t *testing.T) {
	v := &MapValidator{
		KeyValidators: map[string]func(value any) error{
			"a": func(any) error { panic("boom") },
			"b": func(any) error { return errors.New("bad b") },
		},
	}
	errs := ValidateMap(map[string]any{"a": 1, "b": 2}, v)
	require.Len(t, errs, 2)
	assert.Equal(t, "validator_panic", errs[0].Tag)
	assert.Contains(t, errs[0].Message, "boom")
	assert.Equal(t, "custom", errs[1].Tag)
	assert.Equal(t, "bad b", errs[1].Message)
}

func TestValidateMaps(t *testing.T) {
	const sceneSubmit ValidateScene = 1 << 2
	validators := &MapValidators{Validators: map[ValidateScene]*MapValidator{
		sceneSubmit: {RequiredKeys: []string{"username"}},
	}}

	assert.Nil(t, ValidateMaps(sceneSubmit, map[string]any{}, nil))
	assert.Nil(t, ValidateMaps(SceneAll, map[string]any{}, validators))
	assert.Len(t, ValidateMaps(sceneSubmit, map[string]any{}, validators), 1)
}

func TestValidateValues(t *testing.T) {
	values := url.Values{
		"username": {"user_01", "ignored"},
		"password": {"abcdef12"},
		"mobile":   {"13812345678"},
		"allow":    {"on"},
	}
	assert.Empty(t, ValidateValues(values, newRegisterMapValidator()))

	values.Set("username", "x")
	errs := ValidateValues(values, newRegisterMapValidator())
	require.Len(t, errs, 1)
	assert.Equal(t, "register.username", errs[0].Namespace)
	assert.Equal(t, "x", errs[0].Value)

	assert.Len(t, ValidateValues(nil, newRegisterMapValidator()), 1)
}

func TestStringKey(t *testing.T) {
	fn := StringKey(IsMobile, "invalid mobile")
	assert.NoError(t, fn("13812345678"))
	assert.EqualError(t, fn("123"), "invalid mobile")
	assert.Error(t, fn(13812345678))
}
