package bcam

import "testing"

func FuzzDecodeMessage(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{byte(MsgInfo), '0', '.', '0', '.', '2'})
	f.Add([]byte{byte(MsgLog), byte(LogInfo), 'o', 'k'})
	f.Add((&CaptureMessage{Section: SectionStart, Payload: []byte{1, 2, 3}}).Encode())
	f.Add([]byte{byte(MsgCapture), 0xFF, 0x00, 0x00})
	f.Add(make([]byte, MaxMessageSize))

	f.Fuzz(func(t *testing.T, data []byte) {
		msg, err := DecodeMessage(data)
		if err != nil {
			if msg != nil {
				t.Errorf("decode returned message alongside error %v", err)
			}

			return
		}

		// Capture messages must round-trip through the codec.
		if cap, ok := msg.(*CaptureMessage); ok {
			again, err := DecodeMessage(cap.Encode())
			if err != nil {
				t.Errorf("re-decode failed: %v", err)
				return
			}

			cap2 := again.(*CaptureMessage)
			if cap2.Section != cap.Section || cap2.PartSeq != cap.PartSeq {
				t.Errorf("capture header changed across round trip")
			}
		}
	})
}

func FuzzDecodeCommand(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0xBE, 0xCA, byte(CmdGetVersion)})
	f.Add([]byte{0xBE, 0xCA, byte(CmdCapSetup), 0xA0, 0x00, 0x78, 0x00, 16, 1, 1})
	f.Add([]byte{0x00, 0x00, 0x01})

	f.Fuzz(func(t *testing.T, data []byte) {
		cmd, err := DecodeCommand(data)
		if err != nil {
			return
		}

		if cmd.ID == CmdNone || cmd.ID > CmdCapStop {
			t.Errorf("decoded command with invalid id %d", cmd.ID)
		}
	})
}
