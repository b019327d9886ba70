package cli

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineReader_ReadLine(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expectedValue string
	}{
		{
			name:          "successful read",
			input:         "add prod_oud 2\n",
			expectedValue: "add prod_oud 2",
		},
		{
			name:          "read with extra whitespace",
			input:         "  cart  \n",
			expectedValue: "cart",
		},
		{
			name:          "empty line",
			input:         "\n",
			expectedValue: "",
		},
		{
			name:          "last line without newline",
			input:         "quit",
			expectedValue: "quit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewLineReader(strings.NewReader(tt.input))
			result, err := r.ReadLine(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.expectedValue, result)
		})
	}
}

func TestLineReader_EOF(t *testing.T) {
	r := NewLineReader(strings.NewReader(""))
	_, err := r.ReadLine(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineReader_ContextCancellation(t *testing.T) {
	t.Run("immediate cancellation", func(t *testing.T) {
		r := NewLineReader(strings.NewReader("never read\n"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := r.ReadLine(ctx)
		assert.Equal(t, ErrInputCancelled, err)
	})

	t.Run("cancellation during read", func(t *testing.T) {
		pr, pw := io.Pipe()
		defer func() { _ = pr.Close() }()
		defer func() { _ = pw.Close() }()

		r := NewLineReader(pr)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := r.ReadLine(ctx)
		assert.Equal(t, ErrInputCancelled, err)
	})
}

func TestLineReader_MultipleReads(t *testing.T) {
	r := NewLineReader(strings.NewReader("connect\nconsult\nrecs\n"))
	ctx := context.Background()

	for _, want := range []string{"connect", "consult", "recs"} {
		line, err := r.ReadLine(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}
}

func TestFields(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"cart", []string{"cart"}},
		{"add  prod_oud\t2", []string{"add", "prod_oud", "2"}},
		{`review prod_oud 5 "Lasts all day, very warm"`, []string{"review", "prod_oud", "5", "Lasts all day, very warm"}},
		{`stake "Premium Reviewer"`, []string{"stake", "Premium Reviewer"}},
		{`say ""`, []string{"say", ""}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Fields(tt.line), tt.line)
	}
}
