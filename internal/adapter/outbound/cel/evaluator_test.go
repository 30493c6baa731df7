package cel

import (
	"strings"
	"testing"
)

func TestEvaluator_ValidateExpression(t *testing.T) {
	ev, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{name: "simple comparison", expr: `ou == "engineering"`},
		{name: "props lookup", expr: `props["shift"] == "night"`},
		{name: "membership over vars", expr: `user.startsWith("svc-") || role == "oncall"`},
		{name: "empty expression", expr: "", wantErr: true},
		{name: "syntax error", expr: `ou == `, wantErr: true},
		{name: "unknown variable", expr: `department == "x"`, wantErr: true},
		{name: "too long", expr: `ou == "` + strings.Repeat("x", 2048) + `"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ev.ValidateExpression(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateExpression(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestEvaluator_EvaluateExpression(t *testing.T) {
	ev, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	tests := []struct {
		name    string
		expr    string
		user    string
		ou      string
		role    string
		props   map[string]string
		want    bool
		wantErr bool
	}{
		{
			name: "empty expression always passes",
			expr: "",
			want: true,
		},
		{
			name: "ou match",
			expr: `ou == "engineering"`,
			ou:   "engineering",
			want: true,
		},
		{
			name: "ou mismatch",
			expr: `ou == "engineering"`,
			ou:   "sales",
			want: false,
		},
		{
			name:  "props gate",
			expr:  `"shift" in props && props["shift"] == "night"`,
			props: map[string]string{"shift": "night"},
			want:  true,
		},
		{
			name: "missing prop with membership guard",
			expr: `"shift" in props && props["shift"] == "night"`,
			want: false,
		},
		{
			name: "role and user combined",
			expr: `role == "oncall" && !user.startsWith("svc-")`,
			user: "alice",
			role: "oncall",
			want: true,
		},
		{
			name:    "non-boolean result",
			expr:    `ou`,
			ou:      "engineering",
			wantErr: true,
		},
		{
			name:    "missing prop without guard errors",
			expr:    `props["shift"] == "night"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ev.EvaluateExpression(tt.expr, tt.user, tt.ou, tt.role, tt.props)
			if tt.wantErr {
				if err == nil {
					t.Errorf("EvaluateExpression(%q) error = nil, want error", tt.expr)
				}
				return
			}
			if err != nil {
				t.Fatalf("EvaluateExpression(%q) error = %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluator_CompileOnceEvaluateMany(t *testing.T) {
	ev, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	prg, err := ev.Compile(`ou == "engineering"`)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	for _, ou := range []string{"engineering", "sales", "engineering"} {
		got, err := ev.Evaluate(prg, "alice", ou, "engineer", nil)
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if got != (ou == "engineering") {
			t.Errorf("Evaluate() ou=%q = %v", ou, got)
		}
	}
}
