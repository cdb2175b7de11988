package goldsrc

import "testing"

func TestDecodeFrameClassifiesErrors(t *testing.T) {
	mk := func(t byte, body string) []byte {
		buf := append([]byte{0xFF, 0xFF, 0xFF, 0xFF}, t)
		return append(buf, []byte(body)...)
	}

	tests := []struct {
		name string
		buf  []byte
		kind FrameKind
		err  ErrorKind
	}{
		{"success", mk('l', "map changed"), KindComplete, ErrNone},
		{"bad password", mk('l', "Bad rcon_password"), KindError, ErrAuthFailed},
		{"bad challenge", mk('l', "Bad challenge"), KindError, ErrBadChallenge},
		{"unknown command", mk('l', "Unknown command"), KindError, ErrCommandFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := DecodeFrame(tc.buf)
			if f.Kind != tc.kind {
				t.Fatalf("kind: want %v got %v", tc.kind, f.Kind)
			}
			if f.Err != tc.err {
				t.Fatalf("err: want %v got %v", tc.err, f.Err)
			}
		})
	}
}

func TestDecodeFrameRoutesFragmentsAsNeedMore(t *testing.T) {
	buf := []byte{0xFE, 0xFF, 0xFF, 0xFF, 1, 0, 0, 0, 0x12, 'x'}
	f := DecodeFrame(buf)
	if f.Kind != KindNeedMore {
		t.Fatalf("expected fragment datagram to be routed to NeedMore, got %v", f.Kind)
	}
}

func TestEncodeCommand(t *testing.T) {
	buf := EncodeCommand("123456", "secret", "status")
	want := "\xff\xff\xff\xffrcon 123456 secret status\n"
	if string(buf) != want {
		t.Fatalf("want %q got %q", want, string(buf))
	}
}
