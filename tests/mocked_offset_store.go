package tests

type MockOffsetFlagger struct {
	Flagged        map[string]bool
	FlaggedValues  []string
	ExecutionCount int
	ReturnedError  error
}

func NewMockOffsetFlagger() *MockOffsetFlagger {
	return &MockOffsetFlagger{
		Flagged: make(map[string]bool),
	}
}

func (mof *MockOffsetFlagger) FlagAmount(value string) error {
	mof.ExecutionCount++
	if mof.ReturnedError != nil {
		return mof.ReturnedError
	}

	mof.Flagged[value] = true
	mof.FlaggedValues = append(mof.FlaggedValues, value)
	return nil
}

func (mof *MockOffsetFlagger) AmountFlagged(value string) (bool, error) {
	if mof.ReturnedError != nil {
		return false, mof.ReturnedError
	}

	return mof.Flagged[value], nil
}
