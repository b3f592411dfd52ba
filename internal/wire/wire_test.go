package wire

import (
	"bytes"
	"testing"
)

func TestDecodeErase(t *testing.T) {
	payload := []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00}
	req, err := DecodeErase(payload)
	if err != nil {
		t.Fatalf("DecodeErase: %v", err)
	}
	if req.Addr != 0x00010000 || req.Len != 0x00020000 {
		t.Errorf("DecodeErase(%v) = %+v, want Addr=0x10000 Len=0x20000", payload, req)
	}
}

func TestDecodeErase_ShortPayload(t *testing.T) {
	if _, err := DecodeErase([]byte{0x01, 0x02}); err == nil {
		t.Error("DecodeErase with short payload: want error, got nil")
	}
}

func TestDecodeWriteData(t *testing.T) {
	payload := []byte{3, 0xAA, 0xBB, 0xCC}
	req, err := DecodeWriteData(payload)
	if err != nil {
		t.Fatalf("DecodeWriteData: %v", err)
	}
	if !bytes.Equal(req.Data, []byte{0xAA, 0xBB, 0xCC}) {
		t.Errorf("DecodeWriteData(%v).Data = %v, want %v", payload, req.Data, []byte{0xAA, 0xBB, 0xCC})
	}
}

func TestDecodeWriteData_DeclaresMoreThanPresent(t *testing.T) {
	if _, err := DecodeWriteData([]byte{5, 0x01}); err == nil {
		t.Error("DecodeWriteData over-declared length: want error, got nil")
	}
}

func TestDecodeSelect(t *testing.T) {
	req, err := DecodeSelect([]byte{0x02, 0x00, 0x00, 0x00})
	if err != nil {
		t.Fatalf("DecodeSelect: %v", err)
	}
	if req.ChipNum != 2 {
		t.Errorf("DecodeSelect.ChipNum = %d, want 2", req.ChipNum)
	}
}

func TestEncodeOK(t *testing.T) {
	if got := EncodeOK(); !bytes.Equal(got, []byte{KindStatus, StatusOK}) {
		t.Errorf("EncodeOK() = %v", got)
	}
}

func TestEncodeError(t *testing.T) {
	got := EncodeError(100)
	want := []byte{KindStatus, StatusError, 100}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeError(100) = %v, want %v", got, want)
	}
}

func TestEncodeBadBlock(t *testing.T) {
	got := EncodeBadBlock(0x00020000)
	want := []byte{KindStatus, StatusBadBlock, 0x00, 0x00, 0x02, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeBadBlock(0x20000) = %v, want %v", got, want)
	}
}

func TestEncodeData_ExceedsMTU(t *testing.T) {
	if _, err := EncodeData(make([]byte, MaxChunk+1)); err == nil {
		t.Error("EncodeData over MaxChunk: want error, got nil")
	}
}

func TestEncodeData_RoundTripsThroughDecodeResponse(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	frame, err := EncodeData(payload)
	if err != nil {
		t.Fatalf("EncodeData: %v", err)
	}
	resp, err := DecodeResponse(frame)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if resp.Kind != KindData || !bytes.Equal(resp.Data, payload) {
		t.Errorf("DecodeResponse(EncodeData(%v)) = %+v", payload, resp)
	}
}

func TestRequestBuilders_ProduceNonEmptyFrames(t *testing.T) {
	cases := []struct {
		name  string
		frame []byte
	}{
		{"erase", RequestErase(0x1000, 0x2000)},
		{"read", RequestRead(0x1000, 0x2000)},
		{"writeStart", RequestWriteStart(0x1000, 0x2000)},
		{"select", RequestSelect(3)},
		{"readID", RequestReadID()},
		{"readBadBlocks", RequestReadBadBlocks()},
	}
	for _, c := range cases {
		if len(c.frame) == 0 {
			t.Errorf("%s: empty request frame", c.name)
		}
	}
}

func TestDecodeResponse_BadBlock(t *testing.T) {
	frame := EncodeBadBlock(0x40000)
	resp, err := DecodeResponse(frame)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if resp.Kind != KindStatus || resp.Status != StatusBadBlock || resp.BadBlock != 0x40000 {
		t.Errorf("DecodeResponse(EncodeBadBlock) = %+v", resp)
	}
}

func TestDecodeResponse_WriteAck(t *testing.T) {
	frame := EncodeWriteAck(2048)
	resp, err := DecodeResponse(frame)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if resp.Status != StatusWriteAck || resp.WriteAck != 2048 {
		t.Errorf("DecodeResponse(EncodeWriteAck) = %+v", resp)
	}
}

func TestDecodeResponse_Error(t *testing.T) {
	frame := EncodeError(107)
	resp, err := DecodeResponse(frame)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if resp.Status != StatusError || resp.ErrorCode != 107 {
		t.Errorf("DecodeResponse(EncodeError) = %+v", resp)
	}
}

func TestDecodeResponse_ShortFrame(t *testing.T) {
	if _, err := DecodeResponse([]byte{KindStatus}); err == nil {
		t.Error("DecodeResponse on short frame: want error, got nil")
	}
}

func TestDecodeResponse_UnknownKind(t *testing.T) {
	if _, err := DecodeResponse([]byte{0x7F, 0x00}); err == nil {
		t.Error("DecodeResponse on unknown kind: want error, got nil")
	}
}
