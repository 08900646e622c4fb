package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skx/pcc/symtab"
	"github.com/skx/pcc/token"
)

func TestLabelsUserThenGenerated(t *testing.T) {
	l := NewLabels()

	i0 := l.InsertUser(10)
	i1 := l.InsertUser(20)
	assert.Equal(t, 0, i0)
	assert.Equal(t, 1, i1)

	idx, ok := l.Index(20)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = l.Index(99)
	assert.False(t, ok)

	// compiler-generated labels continue from the high-water mark
	gen := l.Next()
	assert.Equal(t, 2, gen)
	assert.Equal(t, 3, l.Len())
}

func TestNodeZeroValueTypeIsNullHandle(t *testing.T) {
	n := NewLeaf(token.IDENTIFIER, token.Position{})
	assert.Equal(t, symtab.NullHandle, n.Type)
	assert.Equal(t, symtab.NullHandle, n.Sym)
}

func TestPrognGroupsChildrenInOrder(t *testing.T) {
	a := NewLeaf(token.INTEGER, token.Position{})
	b := NewLeaf(token.INTEGER, token.Position{})
	p := Progn(token.Position{}, a, b)
	require.Len(t, p.Children, 2)
	assert.Same(t, a, p.Children[0])
	assert.Same(t, b, p.Children[1])
}
