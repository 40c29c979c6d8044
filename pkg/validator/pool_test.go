package validator

import (
	"testing"
)

// ============================================================================
// 对象池测试
// ============================================================================

func TestValidationContextPool(t *testing.T) {
	t.Run("acquire and release", func(t *testing.T) {
		ctx := acquireValidationContext(SceneSMS)
		if ctx == nil {
			t.Fatal("acquireValidationContext returned nil")
		}
		if ctx.Scene != SceneSMS {
			t.Errorf("expected scene %d, got %d", SceneSMS, ctx.Scene)
		}
		if len(ctx.Errors) != 0 {
			t.Errorf("expected empty errors, got %d", len(ctx.Errors))
		}

		ctx.AddError(NewFieldError("mobile", TagMobile, ""))
		ctx.Message = "failed"
		releaseValidationContext(ctx)

		ctx2 := acquireValidationContext(SceneAll)
		if len(ctx2.Errors) != 0 {
			t.Errorf("expected empty errors after release, got %d", len(ctx2.Errors))
		}
		if ctx2.Message != "" {
			t.Errorf("expected empty message after release, got %q", ctx2.Message)
		}
		releaseValidationContext(ctx2)
	})

	t.Run("prevent memory leak with large capacity", func(t *testing.T) {
		ctx := acquireValidationContext(SceneNone)
		for i := 0; i < maxPooledErrors*2; i++ {
			ctx.AddError(NewFieldError("username", "required", ""))
		}
		releaseValidationContext(ctx)

		if cap(ctx.Errors) > maxPooledErrors {
			t.Errorf("expected capacity <= %d after release, got %d", maxPooledErrors, cap(ctx.Errors))
		}
	})

	t.Run("release nil", func(t *testing.T) {
		releaseValidationContext(nil)
	})
}

func TestValidate_ReturnsCopyOfPooledErrors(t *testing.T) {
	v := New()
	form := validForm()
	form.Mobile = "123"

	first := v.Validate(form, SceneSMS)
	if len(first) != 1 {
		t.Fatalf("expected 1 error, got %d", len(first))
	}

	// 再次验证会复用池中的上下文，之前返回的错误不应被覆盖
	form.Mobile = "13812345678"
	form.ImageCode = "a"
	second := v.Validate(form, SceneSMS)
	if len(second) != 1 {
		t.Fatalf("expected 1 error, got %d", len(second))
	}
	if first[0].Tag != TagMobile {
		t.Errorf("first result changed: got tag %q", first[0].Tag)
	}
	if second[0].Tag != "len" {
		t.Errorf("expected len tag, got %q", second[0].Tag)
	}
}
