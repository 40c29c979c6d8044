package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestField_SetUnset(t *testing.T) {
	var f Field
	assert.True(t, f.IsEmpty())

	f.Set(FieldUsername)
	f.Set(FieldMobile)
	assert.True(t, f.Contain(FieldUsername))
	assert.True(t, f.Contain(FieldMobile))
	assert.False(t, f.Contain(FieldPassword))
	assert.False(t, f.IsEmpty())

	f.Unset(FieldUsername)
	assert.False(t, f.Contain(FieldUsername))
	assert.True(t, f.Contain(FieldMobile))

	f.Assign(FieldMobile, false)
	f.Assign(FieldAllow, true)
	assert.Equal(t, FieldAllow, f)

	f.Unset(FieldAllow)
	assert.True(t, f.IsEmpty())
}

func TestField_Contain(t *testing.T) {
	f := FieldPassword | FieldPassword2
	assert.True(t, f.Contain(FieldPassword|FieldPassword2))
	assert.False(t, f.Contain(FieldPassword|FieldSmsCode))
	assert.True(t, f.Contain(FieldNone))
}

func TestField_Names(t *testing.T) {
	f := FieldAllow | FieldUsername | FieldImageCode
	// 顺序与表单展示顺序一致，和设置顺序无关
	assert.Equal(t, []string{"username", "image_code", "allow"}, f.Names())
	assert.Equal(t, "username|image_code|allow", f.String())
	assert.Equal(t, "none", FieldNone.String())
	assert.Len(t, FieldAll.Split(), 7)
	assert.Equal(t, FieldAll, FieldAll|FieldSmsCode)
}

func TestParseField(t *testing.T) {
	for _, field := range FieldAll.Split() {
		parsed, ok := ParseField(field.Name())
		assert.True(t, ok)
		assert.Equal(t, field, parsed)
	}

	_, ok := ParseField("nickname")
	assert.False(t, ok)
	assert.Equal(t, "", (FieldUsername | FieldMobile).Name())
}

func TestField_JSON(t *testing.T) {
	f := FieldMobile | FieldSmsCode
	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `["mobile","sms_code"]`, string(data))

	var parsed Field
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, f, parsed)

	data, err = json.Marshal(FieldNone)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	assert.Error(t, json.Unmarshal([]byte(`["nickname"]`), &parsed))
}

func TestFieldError_String(t *testing.T) {
	assert.Equal(t, "ok", FieldError{}.String())
	assert.Equal(t, "invalid", FieldError{Invalid: true}.String())
	assert.Equal(t, "username already exists", FieldError{Invalid: true, Message: "username already exists"}.String())
}
