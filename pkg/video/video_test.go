package video

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"gopkg.in/hraban/opus.v2"

	"github.com/teslashibe/go-posecam/pkg/audioio"
	"github.com/teslashibe/go-posecam/pkg/protocol"
)

func fakeJPEG(body string) []byte {
	out := []byte{0xFF, 0xD8}
	out = append(out, body...)
	return append(out, 0xFF, 0xD9)
}

func TestScanJPEG(t *testing.T) {
	var stream bytes.Buffer
	stream.WriteString("junk")
	stream.Write(fakeJPEG("one"))
	stream.Write(fakeJPEG("two"))
	stream.Write([]byte{0xFF, 0xD8, 't', 'r', 'u', 'n'})

	scanner := bufio.NewScanner(&stream)
	scanner.Split(ScanJPEG)

	var got [][]byte
	for scanner.Scan() {
		got = append(got, append([]byte(nil), scanner.Bytes()...))
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2", len(got))
	}
	if !bytes.Equal(got[0], fakeJPEG("one")) || !bytes.Equal(got[1], fakeJPEG("two")) {
		t.Errorf("frames = %q", got)
	}
}

func TestScanJPEG_SplitMarker(t *testing.T) {
	// SOI split across reads: the trailing 0xFF must be kept.
	data := []byte{'x', 0xFF}
	advance, token, err := ScanJPEG(data, false)
	if err != nil || token != nil || advance != 1 {
		t.Errorf("ScanJPEG = %d, %v, %v; want 1, nil, nil", advance, token, err)
	}

	// Incomplete frame keeps everything from SOI.
	data = []byte{'x', 'y', 0xFF, 0xD8, 'a'}
	advance, token, _ = ScanJPEG(data, false)
	if token != nil || advance != 2 {
		t.Errorf("incomplete frame: advance = %d, token = %v", advance, token)
	}
}

func catDecoder(onFrame func([]byte)) *Decoder {
	d := NewDecoder(80, onFrame)
	d.Command = func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, "cat")
	}
	return d
}

func TestDecoder(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	var mu sync.Mutex
	var frames [][]byte
	d := catDecoder(func(jpeg []byte) {
		mu.Lock()
		frames = append(frames, jpeg)
		mu.Unlock()
	})

	if _, err := d.Write([]byte("early")); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("Write before Start = %v, want ErrClosedPipe", err)
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	d.Write(fakeJPEG("a"))
	d.Write(fakeJPEG("bb"))
	if err := d.Close(); err != nil {
		t.Errorf("Close error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(frames) != 2 || d.Frames() != 2 {
		t.Fatalf("frames = %d (counter %d), want 2", len(frames), d.Frames())
	}
	if d.Written() != int64(len(fakeJPEG("a"))+len(fakeJPEG("bb"))) {
		t.Errorf("Written = %d", d.Written())
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close error: %v", err)
	}
}

func TestJPEGQScale(t *testing.T) {
	tests := []struct {
		quality int
		want    int
	}{
		{100, 2},
		{1, 30},
		{0, 3},
		{150, 3},
	}
	for _, tt := range tests {
		if got := jpegQScale(tt.quality); got != tt.want {
			t.Errorf("jpegQScale(%d) = %d, want %d", tt.quality, got, tt.want)
		}
	}
}

type fakeSignaler struct {
	mu      sync.Mutex
	answers []string
	ice     []protocol.ICECandidate
	err     error
}

func (f *fakeSignaler) SendAnswer(deviceID, sdp string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.answers = append(f.answers, sdp)
	return nil
}

func (f *fakeSignaler) SendICE(deviceID string, c protocol.ICECandidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ice = append(f.ice, c)
	return nil
}

type fakeAudio struct {
	mu     sync.Mutex
	chunks []audioio.AudioChunk
}

func (f *fakeAudio) Push(chunk audioio.AudioChunk) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, chunk)
	return true
}

func newOffer(t *testing.T) (*webrtc.PeerConnection, string) {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pc.Close() })

	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionSendonly,
		}); err != nil {
			t.Fatal(err)
		}
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		t.Fatal(err)
	}
	return pc, offer.SDP
}

func TestHandleOffer(t *testing.T) {
	signaler := &fakeSignaler{}
	in := NewIngest(DefaultIngestConfig(), signaler, nil, nil, nil)
	defer in.CloseAll()

	offerer, sdp := newOffer(t)
	if err := in.HandleOffer(context.Background(), "phone", sdp); err != nil {
		t.Fatalf("HandleOffer error: %v", err)
	}

	signaler.mu.Lock()
	if len(signaler.answers) != 1 {
		t.Fatalf("answers = %d, want 1", len(signaler.answers))
	}
	answer := signaler.answers[0]
	signaler.mu.Unlock()

	if !strings.Contains(answer, "m=video") || !strings.Contains(answer, "m=audio") {
		t.Errorf("answer should carry both media sections:\n%s", answer)
	}
	if !strings.Contains(answer, "a=recvonly") {
		t.Error("answer should be receive-only")
	}
	if err := offerer.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}); err != nil {
		t.Errorf("offerer rejected answer: %v", err)
	}

	if in.Stats().Peers != 1 {
		t.Errorf("Peers = %d, want 1", in.Stats().Peers)
	}

	// A new offer from the same device replaces the peer.
	_, sdp2 := newOffer(t)
	if err := in.HandleOffer(context.Background(), "phone", sdp2); err != nil {
		t.Fatal(err)
	}
	if in.Stats().Peers != 1 {
		t.Errorf("Peers after renegotiation = %d, want 1", in.Stats().Peers)
	}

	in.Close("phone")
	if in.Stats().Peers != 0 {
		t.Errorf("Peers after Close = %d", in.Stats().Peers)
	}
}

func TestHandleOffer_Errors(t *testing.T) {
	in := NewIngest(DefaultIngestConfig(), &fakeSignaler{}, nil, nil, nil)
	if err := in.HandleOffer(context.Background(), "phone", "not sdp"); err == nil {
		t.Error("invalid SDP should fail")
	}
	if in.Stats().Peers != 0 {
		t.Error("failed offer should not leave a peer")
	}

	failing := &fakeSignaler{err: errors.New("gone")}
	in = NewIngest(DefaultIngestConfig(), failing, nil, nil, nil)
	_, sdp := newOffer(t)
	if err := in.HandleOffer(context.Background(), "phone", sdp); err == nil {
		t.Error("undeliverable answer should fail")
	}
	if in.Stats().Peers != 0 {
		t.Error("peer should be closed when the answer cannot be sent")
	}

	if err := in.AddICECandidate("nobody", protocol.ICECandidate{Candidate: "candidate:0"}); !errors.Is(err, ErrNoPeer) {
		t.Errorf("AddICECandidate = %v, want ErrNoPeer", err)
	}
}

func TestDecodeAudio(t *testing.T) {
	enc, err := opus.NewEncoder(opusSampleRate, opusChannels, opus.AppVoIP)
	if err != nil {
		t.Fatal(err)
	}
	pcm := make([]int16, 960) // 20ms
	for i := range pcm {
		pcm[i] = int16((i % 48) * 300)
	}
	packet := make([]byte, 1000)
	n, err := enc.Encode(pcm, packet)
	if err != nil {
		t.Fatal(err)
	}

	dec, err := opus.NewDecoder(opusSampleRate, opusChannels)
	if err != nil {
		t.Fatal(err)
	}

	sink := &fakeAudio{}
	in := NewIngest(DefaultIngestConfig(), &fakeSignaler{}, nil, sink, nil)
	frame := make([]int16, opusFrameSamples)
	in.decodeAudio(dec, packet[:n], frame)
	in.decodeAudio(dec, nil, frame)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(sink.chunks))
	}
	c := sink.chunks[0]
	if len(c.Samples) != 960 || c.SampleRate != 48000 || c.Channels != 1 {
		t.Errorf("chunk = %d samples @ %dHz x%d", len(c.Samples), c.SampleRate, c.Channels)
	}

	// Decoded audio feeds the 24kHz pipeline.
	if got := len(c.Convert(24000, 1).Samples); got != 480 {
		t.Errorf("converted samples = %d, want 480", got)
	}
}

func TestIngestFeedsFrameSink(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	frames := make(chan []byte, 4)
	sink := frameSinkFunc(func(jpeg []byte) error {
		frames <- jpeg
		return nil
	})
	in := NewIngest(DefaultIngestConfig(), &fakeSignaler{}, sink, nil, nil)
	in.NewDecoder = func(quality int, onFrame func([]byte)) *Decoder { return catDecoder(onFrame) }

	dec := in.NewDecoder(in.cfg.Quality, func(jpeg []byte) { in.frames.PushJPEG(jpeg) })
	if err := dec.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	dec.Write(fakeJPEG("frame"))
	dec.Close()

	select {
	case got := <-frames:
		if !bytes.Equal(got, fakeJPEG("frame")) {
			t.Errorf("frame = %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("frame not delivered")
	}
}

type frameSinkFunc func([]byte) error

func (f frameSinkFunc) PushJPEG(jpeg []byte) error { return f(jpeg) }
