package hardware

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-cameraview/pkg/sizes"
)

type recordingListener struct {
	events  []string
	device  Device
	session Session
	results []Result
}

func (l *recordingListener) OnOpened(dev Device) {
	l.events = append(l.events, "opened")
	l.device = dev
}
func (l *recordingListener) OnClosed(dev Device)       { l.events = append(l.events, "closed") }
func (l *recordingListener) OnDisconnected(dev Device) { l.events = append(l.events, "disconnected") }
func (l *recordingListener) OnError(dev Device, err error) {
	l.events = append(l.events, "error")
}

type sessionRecorder struct{ recordingListener }

func (l *sessionRecorder) OnConfigured(s Session) {
	l.events = append(l.events, "configured")
	l.session = s
}
func (l *sessionRecorder) OnConfigureFailed(s Session, err error) {
	l.events = append(l.events, "configure_failed")
}
func (l *sessionRecorder) OnClosed(s Session) { l.events = append(l.events, "session_closed") }

type resultRecorder struct{ results []Result }

func (l *resultRecorder) OnProgressed(req Request, r Result) {}
func (l *resultRecorder) OnCompleted(req Request, r Result)  { l.results = append(l.results, r) }
func (l *resultRecorder) OnFailed(req Request, err error)    {}

func TestMock_OpenConfigureSubmit(t *testing.T) {
	m := NewMock().AddDevice("0", &Characteristics{})

	ids, err := m.Devices()
	require.NoError(t, err)
	assert.Equal(t, []DeviceID{"0"}, ids)

	dl := &recordingListener{}
	require.NoError(t, m.Open("0", dl))
	assert.Equal(t, []string{"opened"}, dl.events)

	still, err := m.NewStillOutput(sizes.Size{Width: 4, Height: 3}, nil)
	require.NoError(t, err)

	sl := &sessionRecorder{}
	require.NoError(t, dl.device.CreateSession([]Surface{still.Surface()}, sl))
	assert.Equal(t, []string{"configured"}, sl.events)

	rl := &resultRecorder{}
	req := NewRequestBuilder(TemplatePreview, still.Surface()).Snapshot()
	require.NoError(t, sl.session.SetRepeating(req, rl))
	assert.True(t, m.Session().Frame(ResultOf(AF(AFStateFocusedLocked), nil)))
	require.Len(t, rl.results, 1)
	assert.Equal(t, AFStateFocusedLocked, *rl.results[0].AFState)

	require.NoError(t, sl.session.StopRepeating())
	assert.False(t, m.Session().Frame(Result{}))
	assert.Equal(t, 1, m.Session().StopCount())
}

func TestMock_TeardownLog(t *testing.T) {
	m := NewMock().AddDevice("0", &Characteristics{})
	dl := &recordingListener{}
	require.NoError(t, m.Open("0", dl))
	still, _ := m.NewStillOutput(sizes.Size{}, nil)
	sl := &sessionRecorder{}
	require.NoError(t, dl.device.CreateSession([]Surface{still.Surface()}, sl))

	require.NoError(t, sl.session.Close())
	require.NoError(t, dl.device.Close())
	require.NoError(t, still.Close())
	require.NoError(t, still.Close())

	assert.Equal(t, []string{"session.close", "device.close", "still.close"}, m.Events())
	assert.ErrorIs(t, sl.session.Capture(Request{}, &resultRecorder{}), ErrSessionClosed)
	assert.ErrorIs(t, dl.device.CreateSession(nil, sl), ErrDeviceClosed)
}

func TestMock_Failures(t *testing.T) {
	m := NewMock().AddDevice("0", &Characteristics{})

	assert.ErrorIs(t, m.Open("9", &recordingListener{}), ErrUnknownDevice)

	m.OpenFunc = func(DeviceID) error { return ErrAccessDenied }
	assert.ErrorIs(t, m.Open("0", &recordingListener{}), ErrAccessDenied)
	m.OpenFunc = nil

	m.ConfigureFunc = func([]Surface) error { return errors.New("bad outputs") }
	dl := &recordingListener{}
	require.NoError(t, m.Open("0", dl))
	sl := &sessionRecorder{}
	require.NoError(t, dl.device.CreateSession(nil, sl))
	assert.Equal(t, []string{"configure_failed"}, sl.events)

	boom := errors.New("boom")
	m.SubmitFunc = func(Request) error { return boom }
	assert.ErrorIs(t, m.Session().Capture(Request{}, &resultRecorder{}), boom)
	assert.Empty(t, m.Session().Captures())

	m.DevicesErr = boom
	_, err := m.Devices()
	assert.ErrorIs(t, err, boom)
}

func TestMockStillOutput_Deliver(t *testing.T) {
	m := NewMock()
	var got []byte
	out, err := m.NewStillOutput(sizes.Size{Width: 8, Height: 6}, func(b []byte) { got = b })
	require.NoError(t, err)
	out.(*MockStillOutput).Deliver([]byte{0xff, 0xd8})
	assert.Equal(t, []byte{0xff, 0xd8}, got)
	assert.Equal(t, sizes.Size{Width: 8, Height: 6}, out.Surface().Size())
}

func TestMock_OpenErrorIsReportedToListener(t *testing.T) {
	m := NewMock().AddDevice("0", &Characteristics{})
	m.OpenErrorFunc = func(DeviceID) error { return ErrAccessDenied }

	l := &recordingListener{}
	require.NoError(t, m.Open("0", l))
	assert.Equal(t, []string{"error"}, l.events)
	assert.Nil(t, m.Device())
	assert.Equal(t, []DeviceID{"0"}, m.Opens())
}
