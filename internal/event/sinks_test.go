package event

import "testing"

func TestChannelSinkDelivers(t *testing.T) {
	ch := make(chan Envelope, 2)
	s := NewChannelSink(ch, nil)

	s.Emit(Envelope{Sequence: 0, Type: TypePolicyPurchased})
	s.Emit(Envelope{Sequence: 1, Type: TypeClaimFiled})

	if got := <-ch; got.Sequence != 0 || got.Type != TypePolicyPurchased {
		t.Errorf("first envelope = %+v", got)
	}
	if got := <-ch; got.Sequence != 1 {
		t.Errorf("second envelope = %+v", got)
	}
}

func TestChannelSinkDropsWhenFull(t *testing.T) {
	ch := make(chan Envelope, 1)
	drops := 0
	s := NewChannelSink(ch, func() { drops++ })

	s.Emit(Envelope{Sequence: 0})
	s.Emit(Envelope{Sequence: 1}) // channel full, must not block
	s.Emit(Envelope{Sequence: 2})

	if drops != 2 {
		t.Errorf("drops = %d, want 2", drops)
	}
	if got := <-ch; got.Sequence != 0 {
		t.Errorf("delivered envelope = %+v, want sequence 0", got)
	}
}

func TestFanOut(t *testing.T) {
	a := make(chan Envelope, 1)
	b := make(chan Envelope, 1)
	f := FanOut{NewChannelSink(a, nil), NewChannelSink(b, nil)}

	f.Emit(Envelope{Sequence: 7})

	if got := <-a; got.Sequence != 7 {
		t.Errorf("first sink got %+v", got)
	}
	if got := <-b; got.Sequence != 7 {
		t.Errorf("second sink got %+v", got)
	}
}

func TestFanOutEmpty(t *testing.T) {
	var f FanOut
	f.Emit(Envelope{Sequence: 0}) // must not panic
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{TypePolicyPurchased, "PolicyPurchased"},
		{TypePolicyCancelled, "PolicyCancelled"},
		{TypeClaimFiled, "ClaimFiled"},
		{TypeClaimProcessed, "ClaimProcessed"},
		{TypeClaimProcessingFeeUpdated, "ClaimProcessingFeeUpdated"},
		{TypeCoverageLimitsUpdated, "CoverageLimitsUpdated"},
		{TypeExcessFundsWithdrawn, "ExcessFundsWithdrawn"},
		{TypeUnknown, "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("Type(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}
