// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"errors"
	"testing"
)

func TestDepSpecParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec DepSpec
		want PackageRef
	}{
		{
			name: "plain package",
			spec: "pytest",
			want: PackageRef{Name: "pytest"},
		},
		{
			name: "pinned version",
			spec: "flake8==3.5.0",
			want: PackageRef{Name: "flake8", Constraint: "==", Version: "3.5.0"},
		},
		{
			name: "minimum version",
			spec: "requests>=2.0",
			want: PackageRef{Name: "requests", Constraint: ">=", Version: "2.0"},
		},
		{
			name: "exclusion",
			spec: "urllib3!=1.25.0",
			want: PackageRef{Name: "urllib3", Constraint: "!=", Version: "1.25.0"},
		},
		{
			name: "spaces around constraint",
			spec: "pytest >= 7.0",
			want: PackageRef{Name: "pytest", Constraint: ">=", Version: "7.0"},
		},
		{
			name: "relative local path",
			spec: "./packages/bootstrap",
			want: PackageRef{LocalPath: "./packages/bootstrap"},
		},
		{
			name: "parent local path",
			spec: "../common",
			want: PackageRef{LocalPath: "../common"},
		},
		{
			name: "dotted package name",
			spec: "zope.interface",
			want: PackageRef{Name: "zope.interface"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.spec.Parse()
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.spec, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestDepSpecParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec DepSpec
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"constraint without version", "pytest=="},
		{"bad package name", "not a package"},
		{"shell metacharacters", "pytest;rm"},
		{"leading hyphen", "-pytest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := tt.spec.Parse()
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.spec)
			}
			if !errors.Is(err, ErrInvalidDepSpec) {
				t.Errorf("error = %v, want ErrInvalidDepSpec", err)
			}
		})
	}
}

func TestDepSpecIsLocal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		spec DepSpec
		want bool
	}{
		{"./pkg", true},
		{"../pkg", true},
		{"/abs/path", true},
		{".", true},
		{"..", true},
		{"pytest", false},
		{"zope.interface", false},
	}

	for _, tt := range tests {
		if got := tt.spec.IsLocal(); got != tt.want {
			t.Errorf("IsLocal(%q) = %v, want %v", tt.spec, got, tt.want)
		}
	}
}

func TestDepSpecProvidedName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		spec DepSpec
		want string
	}{
		{"pytest", "pytest"},
		{"flake8==3.5.0", "flake8"},
		{"./packages/bootstrap", "bootstrap"},
		{"../common", "common"},
		{"not a package", ""},
	}

	for _, tt := range tests {
		if got := tt.spec.ProvidedName(); got != tt.want {
			t.Errorf("ProvidedName(%q) = %q, want %q", tt.spec, got, tt.want)
		}
	}
}
