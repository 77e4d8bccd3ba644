package pointer

import (
	"testing"

	"github.com/shoenig/test/must"
)

func Test_Of(t *testing.T) {
	s := "hello"
	sPtr := Of(s)

	must.Eq(t, s, *sPtr)

	b := "bye"
	sPtr = &b
	must.NotEq(t, s, *sPtr)
}

func Test_Copy(t *testing.T) {
	must.Nil(t, Copy[int](nil))

	orig := Of(42)
	dup := Copy(orig)
	must.Eq(t, *orig, *dup)

	*dup = 7
	must.Eq(t, 42, *orig)
}

func Test_Eq(t *testing.T) {
	must.True(t, Eq[int](nil, nil))
	must.False(t, Eq(Of(1), nil))
	must.True(t, Eq(Of(1), Of(1)))
	must.False(t, Eq(Of(1), Of(2)))
}
