package feed

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "<p>Hello <em>there</em></p>", "<p>Hello <em>there</em></p>"},
		{"code block", "<p>a</p><pre><code class=\"language-go\">x</code></pre>", "<p>a</p>[Code snippet]"},
		{"pre without code kept", "<pre>ascii art</pre>", "<pre>ascii art</pre>"},
		{"nested code block", "<div><pre><code>x</code></pre></div>", "<div>[Code snippet]</div>"},
		{"inline code kept", "<p>use <code>go test</code></p>", "<p>use <code>go test</code></p>"},
		{"script and style dropped", "<style>p{}</style><p>x<script>y()</script></p>", "<p>x</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize([]byte(tt.in))
			if err != nil {
				t.Fatalf("Sanitize() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Sanitize() = %q, want %q", got, tt.want)
			}
		})
	}
}
