// Command frameinspect is a host-only REPL for building and inspecting MIN
// frames by hand: type a frame id and a sequence of typed field literals,
// see the exact wire bytes (with stuffing) that would go out on the bus.
package main

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"riglink-core/min"
	"riglink-core/x/conv"
	"riglink-core/x/fmtx"
)

func main() {
	fmtx.Printf("frameinspect: id u8:<n> u16:<n> u32:<n> f32:<n> f64:<n> ...\n")
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmtx.Printf("> ")
		if !sc.Scan() {
			return
		}
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := runLine(line); err != nil {
			fmtx.Printf("error: %v\n", err)
		}
	}
}

func runLine(line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmtx.Errorf("tokenize: %w", err)
	}
	if len(tokens) < 1 {
		return fmtx.Errorf("expected an id")
	}
	id, err := strconv.ParseUint(tokens[0], 0, 8)
	if err != nil {
		return fmtx.Errorf("bad id %q: %w", tokens[0], err)
	}
	f := min.NewFrame(uint8(id))
	for _, tok := range tokens[1:] {
		if err := packField(&f, tok); err != nil {
			return err
		}
	}
	printFrame(&f)
	return nil
}

func packField(f *min.Frame, tok string) error {
	kind, rest, ok := strings.Cut(tok, ":")
	if !ok {
		return fmtx.Errorf("field %q must be kind:value", tok)
	}
	switch kind {
	case "u8":
		v, err := strconv.ParseUint(rest, 0, 8)
		if err != nil {
			return err
		}
		f.PackU8(uint8(v))
	case "u16":
		v, err := strconv.ParseUint(rest, 0, 16)
		if err != nil {
			return err
		}
		f.PackU16(uint16(v))
	case "u32":
		v, err := strconv.ParseUint(rest, 0, 32)
		if err != nil {
			return err
		}
		f.PackU32(uint32(v))
	case "f32":
		v, err := strconv.ParseFloat(rest, 32)
		if err != nil {
			return err
		}
		f.PackF32(float32(v))
	case "f64":
		v, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return err
		}
		f.PackF64(v)
	default:
		return fmtx.Errorf("unknown field kind %q", kind)
	}
	return nil
}

func printFrame(f *min.Frame) {
	wire := min.Bytes(f)
	fmtx.Printf("id=%d payload_len=%d wire_len=%d\n", f.ID(), f.Len(), len(wire))
	fmtx.Printf("%s\n", hexDump(wire))
}

func hexDump(b []byte) string {
	var sb strings.Builder
	buf := make([]byte, 8)
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.Write(conv.U32Hex(buf, uint32(c))[6:])
	}
	return sb.String()
}
