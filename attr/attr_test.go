package attr_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/dudk/montage/attr"
)

func TestTypedAccess(t *testing.T) {
	s := attr.New()
	assert.Nil(t, s.SetInt("slots", 2))
	assert.Nil(t, s.SetFloat("mix", 0.5))
	assert.Nil(t, s.SetString("mode", "fill"))
	assert.Nil(t, s.SetNumbers("events", 0, 3, 7))

	slots, err := s.Int("slots")
	assert.Nil(t, err)
	assert.Equal(t, 2, slots)

	mix, err := s.Float("mix")
	assert.Nil(t, err)
	assert.Equal(t, 0.5, mix)

	// integers widen to floats on read
	f, err := s.Float("slots")
	assert.Nil(t, err)
	assert.Equal(t, 2.0, f)

	_, err = s.Int("mix")
	assert.True(t, errors.Is(err, attr.ErrTypeMismatch))

	_, err = s.String("missing")
	assert.True(t, errors.Is(err, attr.ErrNotFound))

	events, err := s.Numbers("events")
	assert.Nil(t, err)
	assert.Equal(t, []float64{0, 3, 7}, events)
}

func TestSetMismatch(t *testing.T) {
	tests := []struct {
		description string
		declared    attr.Value
		written     attr.Value
		fails       bool
	}{
		{
			description: "same kind",
			declared:    attr.IntValue(1),
			written:     attr.IntValue(2),
		},
		{
			description: "int over float",
			declared:    attr.FloatValue(1),
			written:     attr.IntValue(2),
		},
		{
			description: "float over int",
			declared:    attr.IntValue(1),
			written:     attr.FloatValue(2),
			fails:       true,
		},
		{
			description: "string over int",
			declared:    attr.IntValue(1),
			written:     attr.StringValue("x"),
			fails:       true,
		},
	}
	for _, test := range tests {
		s := attr.New().Declare("k", test.declared)
		err := s.Set("k", test.written)
		if test.fails {
			assert.True(t, errors.Is(err, attr.ErrTypeMismatch), test.description)
			v, _ := s.Get("k")
			assert.True(t, v.Equal(test.declared), test.description)
		} else {
			assert.Nil(t, err, test.description)
		}
	}
}

func TestIntoFloatKeepsKind(t *testing.T) {
	s := attr.New().Declare("x", attr.FloatValue(0))
	assert.Nil(t, s.SetInt("x", 1))
	v, ok := s.Get("x")
	assert.True(t, ok)
	assert.Equal(t, attr.Float, v.Kind())
}

func TestInsertionOrder(t *testing.T) {
	s := attr.New()
	for _, k := range []string{"z", "a", "m", "b"} {
		assert.Nil(t, s.SetInt(k, 0))
	}
	assert.Nil(t, s.SetInt("a", 1))
	assert.Equal(t, []string{"z", "a", "m", "b"}, s.Keys())

	s.Delete("m")
	assert.Equal(t, []string{"z", "a", "b"}, s.Keys())
	assert.False(t, s.Valid("m"))

	var visited []string
	s.Each(func(key string, v attr.Value) {
		visited = append(visited, key+"="+v.String())
	})
	assert.Equal(t, []string{"z=0", "a=1", "b=0"}, visited)
}

func TestObservers(t *testing.T) {
	s := attr.New().Declare("slots", attr.IntValue(2))
	var seen []int
	cancel := s.Subscribe("slots", func(key string, v attr.Value) {
		i, err := v.Int()
		assert.Nil(t, err)
		seen = append(seen, i)
		// observers may read the store they observe
		assert.True(t, s.Valid(key))
	})
	assert.Nil(t, s.SetInt("slots", 3))
	assert.Nil(t, s.SetInt("other", 9))
	// failed writes are not notified
	assert.NotNil(t, s.SetString("slots", "four"))
	cancel()
	assert.Nil(t, s.SetInt("slots", 5))
	assert.Equal(t, []int{3}, seen)
}

func TestClone(t *testing.T) {
	s := attr.New()
	assert.Nil(t, s.SetFloat("x", 0.25))
	notified := 0
	s.Subscribe("x", func(string, attr.Value) { notified++ })

	c := s.Clone()
	assert.Nil(t, c.SetFloat("x", 0.75))
	assert.Nil(t, c.SetInt("z", 1))

	assert.Equal(t, 0.25, s.FloatOr("x", -1))
	assert.False(t, s.Valid("z"))
	assert.Equal(t, 0, notified)
	assert.Equal(t, []string{"x", "z"}, c.Keys())
}

func TestFallbacks(t *testing.T) {
	s := attr.New()
	assert.Nil(t, s.SetString("mode", "smart"))
	assert.Equal(t, 1.0, s.FloatOr("w", 1.0))
	assert.Equal(t, "smart", s.StringOr("mode", "fill"))
	assert.Equal(t, 7, s.IntOr("mode", 7))

	h := &struct{}{}
	assert.Nil(t, s.SetHandle("cb", h))
	got, err := s.Handle("cb")
	assert.Nil(t, err)
	assert.True(t, got == h)
}
