package template

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		values     map[string]string
		want       string
		unresolved []string
	}{
		{
			name:   "single placeholder",
			src:    "print({message})",
			values: map[string]string{"message": `"Hello"`},
			want:   `print("Hello")`,
		},
		{
			name:   "repeated placeholder",
			src:    "{x} = {x} + 1",
			values: map[string]string{"x": "count"},
			want:   "count = count + 1",
		},
		{
			name:   "escaped braces around placeholder",
			src:    "{{{items}}}",
			values: map[string]string{"items": `"a": 1`},
			want:   `{"a": 1}`,
		},
		{
			name:   "value is not re-expanded",
			src:    "{a}",
			values: map[string]string{"a": "{b}", "b": "wrong"},
			want:   "{b}",
		},
		{
			name:       "missing value renders empty",
			src:        "return {value}",
			values:     map[string]string{},
			want:       "return ",
			unresolved: []string{"value"},
		},
		{
			name:   "extra values ignored",
			src:    "pass",
			values: map[string]string{"unused": "1"},
			want:   "pass",
		},
		{
			name:   "multi-line template",
			src:    "def {name}({params}):\n    {body}",
			values: map[string]string{"name": "f", "params": "x", "body": "return x"},
			want:   "def f(x):\n    return x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := Parse(tt.src, "test")
			require.NoError(t, err)

			res := tmpl.Render(tt.values)
			assert.Equal(t, tt.want, res.Text)

			var names []string
			for _, u := range res.Unresolved {
				names = append(names, u.Name)
			}
			assert.Equal(t, tt.unresolved, names)
		})
	}
}

func TestSubstitute(t *testing.T) {
	res, err := Substitute("({a} + {b})", map[string]string{"a": "1", "b": "2"})
	require.NoError(t, err)
	assert.Equal(t, "(1 + 2)", res.Text)
	assert.Empty(t, res.Unresolved)

	_, err = Substitute("oops }", nil)
	var lexErr *LexError
	assert.ErrorAs(t, err, &lexErr)
}

func TestCache(t *testing.T) {
	c := NewCache()

	a, err := c.Get("x = {v}", "Variable")
	require.NoError(t, err)
	b, err := c.Get("x = {v}", "Variable")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, c.Len())

	_, err1 := c.Get("{", "Broken")
	_, err2 := c.Get("{", "Broken")
	require.Error(t, err1)
	assert.Same(t, err1, err2)
	assert.Equal(t, 2, c.Len())
}

func TestCache_Concurrent(t *testing.T) {
	c := NewCache()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tmpl, err := c.Get("print({message})", "Print")
			if assert.NoError(t, err) {
				assert.Equal(t, "print(1)", tmpl.Render(map[string]string{"message": "1"}).Text)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}
