package sample

import "testing"

func TestPasses(t *testing.T) {}

func TestFails(t *testing.T) {
	t.Log("about to fail")
	t.Fail()
}

func TestSkips(t *testing.T) {
	t.Skip("not today")
}

func TestSubtests(t *testing.T) {
	t.Run("inner", func(t *testing.T) {})
}
