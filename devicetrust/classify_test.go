package devicetrust

import (
	"errors"
	"testing"
)

func TestClassifyRules(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name string
		resp Response
		want Classification
	}{
		{
			name: "transport error",
			resp: Response{Err: errors.New("dial tcp: timeout"), AccessToken: "a"},
			want: Failed,
		},
		{
			name: "backend flagged failure wins over token",
			resp: Response{Failed: true, AccessToken: "a", Raw: []byte(`{"is_new_device":true}`)},
			want: Failed,
		},
		{
			name: "root unverified",
			resp: Response{Raw: []byte(`{"is_verified":false}`), AccessToken: "a"},
			want: Unverified,
		},
		{
			name: "nested unverified",
			resp: Response{Raw: []byte(`{"data":{"user":{"is_verified":false}}}`), AccessToken: "a"},
			want: Unverified,
		},
		{
			name: "unverified outranks new device",
			resp: Response{Raw: []byte(`{"is_new_device":true,"user":{"is_verified":false}}`)},
			want: Unverified,
		},
		{
			name: "new device flag",
			resp: Response{Raw: []byte(`{"is_new_device":true}`), AccessToken: "a"},
			want: NewDevice,
		},
		{
			name: "nested new device as string",
			resp: Response{Raw: []byte(`{"data":{"is_new_device":"true"}}`)},
			want: NewDevice,
		},
		{
			name: "verified true does not block",
			resp: Response{Raw: []byte(`{"is_verified":true,"is_new_device":false}`), AccessToken: "a"},
			want: Authenticated,
		},
		{
			name: "phrase match is case-insensitive",
			resp: Response{Message: "Login from a NEW   Device, please confirm"},
			want: NewDevice,
		},
		{
			name: "vietnamese phrase",
			resp: Response{Message: "Đăng nhập trên THIẾT BỊ MỚI"},
			want: NewDevice,
		},
		{
			name: "token only",
			resp: Response{AccessToken: "a", Raw: []byte(`{"access_token":"a"}`)},
			want: Authenticated,
		},
		{
			name: "nothing usable",
			resp: Response{Message: "ok"},
			want: Failed,
		},
		{
			name: "flag beyond depth limit ignored",
			resp: Response{Raw: []byte(`{"a":{"b":{"c":{"is_new_device":true}}}}`), AccessToken: "a"},
			want: Authenticated,
		},
		{
			name: "invalid json falls through",
			resp: Response{Raw: []byte(`{"is_new_device":tru`), AccessToken: "a"},
			want: Authenticated,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.Classify(tc.resp); got != tc.want {
				t.Fatalf("Classify() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestCustomPhrasesReplaceDefaults(t *testing.T) {
	c := NewClassifier("Confirm this phone")

	if got := c.Classify(Response{Message: "please CONFIRM this phone"}); got != NewDevice {
		t.Fatalf("expected custom phrase to match, got %s", got)
	}
	if got := c.Classify(Response{Message: "new device"}); got != Failed {
		t.Fatalf("expected defaults to be replaced, got %s", got)
	}
}

func TestClassificationString(t *testing.T) {
	want := map[Classification]string{
		Failed:        "FAILED",
		Authenticated: "AUTHENTICATED",
		NewDevice:     "NEW_DEVICE",
		Unverified:    "UNVERIFIED",
	}
	for c, s := range want {
		if c.String() != s {
			t.Fatalf("%d.String() = %q, want %q", c, c.String(), s)
		}
	}
}
