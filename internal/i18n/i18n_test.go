// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestNew_Matching(t *testing.T) {
	tests := []struct {
		lang string
		want language.Tag
	}{
		{"", language.SimplifiedChinese},
		{"zh", language.SimplifiedChinese},
		{"zh-CN", language.SimplifiedChinese},
		{"en", language.English},
		{"en-GB", language.English},
		{"not a tag!", language.SimplifiedChinese},
	}
	for _, tc := range tests {
		t.Run(tc.lang, func(t *testing.T) {
			if got := New(tc.lang).Tag(); got != tc.want {
				t.Errorf("New(%q).Tag() = %v, want %v", tc.lang, got, tc.want)
			}
		})
	}
}

func TestLocalizer_Join(t *testing.T) {
	assert.Equal(t, "请求失败：boom", Default().Join(Default().T(PrefixChat), "boom"))
	en := New("en")
	assert.Equal(t, "Request failed: boom", en.Join(en.T(PrefixChat), "boom"))
}

func TestLocalizer_Args(t *testing.T) {
	zh := Default()
	assert.Equal(t, "服务器返回错误（502）: bad gateway", zh.T(HTTPErrorBody, "502", "bad gateway"))
	assert.Equal(t, "一张分辨率约为 1920x1080 的图片。", zh.T(ImageDimensions, "1920x1080"))
	assert.Equal(t, "Non-text file, about 2048 KB.", New("en").T(FileNonText, "2048"))
}

func TestLocalizer_IsChinese(t *testing.T) {
	assert.True(t, Default().IsChinese())
	assert.False(t, New("en").IsChinese())
}

func TestCatalog_EveryKeyTranslated(t *testing.T) {
	zh, en := Default(), New("en")
	for _, e := range entries {
		if e.zh == "" || e.en == "" {
			t.Errorf("%s: missing translation", e.key)
			continue
		}
		if zh.T(e.key) == string(e.key) {
			t.Errorf("%s: zh lookup fell through to key", e.key)
		}
		if en.T(e.key) == string(e.key) {
			t.Errorf("%s: en lookup fell through to key", e.key)
		}
	}
}
