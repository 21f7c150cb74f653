package protocol

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewCommandMessage creates an engine command message
func NewCommandMessage(target, method, payload string) (*Message, error) {
	return NewMessage(TypeCommand, CommandData{
		Target:  target,
		Method:  method,
		Payload: payload,
	})
}

// NewBootstrapMessage creates a bootstrap request
func NewBootstrapMessage(reason string) (*Message, error) {
	return NewMessage(TypeBootstrap, BootstrapData{Reason: reason})
}

// NewLoadedMessage creates the engine loaded notification
func NewLoadedMessage() (*Message, error) {
	return NewMessage(TypeLoaded, nil)
}

// NewProgressMessage creates a load progress message
func NewProgressMessage(progress float64) (*Message, error) {
	return NewMessage(TypeProgress, ProgressData{Progress: progress})
}

// NewErrorMessage creates an engine error message
func NewErrorMessage(message string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Message: message})
}

// NewKeyMessage creates a keyboard event message
func NewKeyMessage(code string, pressed bool) (*Message, error) {
	return NewMessage(TypeKey, KeyData{Code: code, Pressed: pressed})
}

// NewStatusMessage creates a status broadcast
func NewStatusMessage(status any) (*Message, error) {
	return NewMessage(TypeStatus, status)
}

// NewPingMessage creates a ping message
func NewPingMessage(id string, ts int64) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id, Timestamp: ts})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetCommandData extracts an engine command from a message
func (m *Message) GetCommandData() (*CommandData, error) {
	var data CommandData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetProgressData extracts load progress from a message
func (m *Message) GetProgressData() (*ProgressData, error) {
	var data ProgressData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts an engine error from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetKeyData extracts a keyboard event from a message
func (m *Message) GetKeyData() (*KeyData, error) {
	var data KeyData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
