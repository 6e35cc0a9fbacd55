package chat

import "testing"

func TestSanitize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"script block", "<script>alert(1)</script>Hello", "Hello"},
		{"script with attrs", `<script type="text/javascript">x()</script>ok`, "ok"},
		{"script across lines", "a<script>\nevil()\n</script>b", "ab"},
		{"javascript uri", `<a href="javascript:steal()">x</a>`, `<a href="steal()">x</a>`},
		{"onclick attr", `<img src="x.png" onclick="evil()">`, `<img src="x.png">`},
		{"onerror attr single quotes", `<img src=x onerror='evil()'>`, `<img src=x>`},
		{"plain text untouched", "货到了，明天上午签收", "货到了，明天上午签收"},
		{"case insensitive", "<SCRIPT>x</SCRIPT>safe", "safe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sanitize(tc.in); got != tc.want {
				t.Fatalf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
