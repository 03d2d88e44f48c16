package roster

import (
	"testing"

	"deskbot/pkg/logx"
)

func TestSeededStaff(t *testing.T) {
	t.Parallel()
	r := New([]int64{10, 20}, nil, logx.Nop())

	if !r.IsStaff(10) || !r.IsStaff(20) {
		t.Fatal("seeded IDs should be staff")
	}
	if r.IsStaff(30) {
		t.Fatal("unknown ID should not be staff")
	}
	if r.Size() != 2 {
		t.Fatalf("Size = %d, want 2", r.Size())
	}
}

func TestObservePromotesOnceInSourceChat(t *testing.T) {
	t.Parallel()
	const sourceChat = int64(-100)
	r := New(nil, []int64{sourceChat}, logx.Nop())

	alice := Identity{UserID: 7, Username: "alice"}

	if !r.Observe(sourceChat, alice) {
		t.Fatal("first observation in source chat should promote")
	}
	if !r.IsStaff(7) {
		t.Fatal("promoted user should be staff")
	}
	if r.Observe(sourceChat, alice) {
		t.Fatal("second observation should not re-promote")
	}
}

func TestObserveIgnoresCustomerChats(t *testing.T) {
	t.Parallel()
	r := New(nil, []int64{-100}, logx.Nop())

	if r.Observe(-200, Identity{UserID: 8, Username: "bob"}) {
		t.Fatal("observation outside a source chat must not promote")
	}
	if r.IsStaff(8) {
		t.Fatal("user seen only in customer chat must not be staff")
	}
}

func TestObserveRefreshesSeededIdentity(t *testing.T) {
	t.Parallel()
	r := New([]int64{10}, nil, logx.Nop())

	if r.Observe(-200, Identity{UserID: 10, Username: "carol"}) {
		t.Fatal("seeded staff should never report a new promotion")
	}
	if !r.IsStaff(10) {
		t.Fatal("seeded staff should remain staff")
	}
	if r.Size() != 1 {
		t.Fatalf("Size = %d, want 1", r.Size())
	}
}
