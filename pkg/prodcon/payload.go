package prodcon

import (
	"crypto/sha512"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	// FamilyName routes the transactions to the Handler.
	FamilyName    = "produce_consume"
	FamilyVersion = "1.0"
)

// Namespace is the address prefix of every item.
var Namespace = []byte{0xce, 0x22, 0x92}

const addressHashBytes = 32

// Action is what a command does to the quantity of an item.
type Action int32

const (
	Produce Action = iota
	Consume
)

func (a Action) String() string {
	switch a {
	case Produce:
		return "PRODUCE"
	case Consume:
		return "CONSUME"
	default:
		return fmt.Sprintf("Action(%d)", int32(a))
	}
}

// Command is a parsed user command.
type Command struct {
	Action     Action
	Identifier string
	Quantity   int32
}

var commandPattern = regexp.MustCompile(`^(PRODUCE|CONSUME)[ \t]+(\w+)[ \t]+([+-]?\w+)$`)

const commandHint = `please input "[PRODUCE|CONSUME] <identifier> <quantity>"`

// ParseCommand parses a line of user input.
func ParseCommand(text string) (Command, error) {
	m := commandPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Command{}, &Error{Kind: ErrFormat, Op: "parse command", Err: fmt.Errorf("%q: %s", strings.TrimSpace(text), commandHint)}
	}

	var c Command
	switch m[1] {
	case "PRODUCE":
		c.Action = Produce
	case "CONSUME":
		c.Action = Consume
	default:
		panic("unexpected command action: " + m[1])
	}

	c.Identifier = m[2]
	q, err := strconv.ParseInt(m[3], 10, 32)
	if err != nil {
		return Command{}, &Error{Kind: ErrFormat, Op: "parse quantity", Err: err}
	}

	c.Quantity = int32(q)
	return c, nil
}

// Field numbers of the payload message.
const (
	fieldCommand    protowire.Number = 1
	fieldIdentifier protowire.Number = 2
	fieldQuantity   protowire.Number = 3
)

// Encode returns the protobuf encoding of the command. Zero values are
// omitted.
func (c Command) Encode() ([]byte, error) {
	if c.Action != Produce && c.Action != Consume {
		return nil, &Error{Kind: ErrCodec, Op: "encode payload", Err: fmt.Errorf("unknown action %d", int32(c.Action))}
	}

	var b []byte
	if c.Action != Produce {
		b = protowire.AppendTag(b, fieldCommand, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.Action))
	}
	if c.Identifier != "" {
		b = protowire.AppendTag(b, fieldIdentifier, protowire.BytesType)
		b = protowire.AppendString(b, c.Identifier)
	}
	if c.Quantity != 0 {
		b = protowire.AppendTag(b, fieldQuantity, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(c.Quantity)))
	}

	if b == nil {
		b = []byte{}
	}
	return b, nil
}

// DecodeCommand decodes a payload produced by Command.Encode.
func DecodeCommand(b []byte) (Command, error) {
	var c Command
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Command{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == fieldCommand && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Command{}, protowire.ParseError(n)
			}
			c.Action = Action(int32(v))
			b = b[n:]
		case num == fieldIdentifier && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Command{}, protowire.ParseError(n)
			}
			c.Identifier = v
			b = b[n:]
		case num == fieldQuantity && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Command{}, protowire.ParseError(n)
			}
			c.Quantity = int32(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Command{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}

	if c.Action != Produce && c.Action != Consume {
		return Command{}, fmt.Errorf("unknown action %d", int32(c.Action))
	}
	return c, nil
}

// Address returns the state address of the item: the namespace
// followed by the first 32 bytes of the SHA-512 of the identifier.
func Address(identifier string) []byte {
	sum := sha512.Sum512([]byte(identifier))
	addr := make([]byte, 0, len(Namespace)+addressHashBytes)
	addr = append(addr, Namespace...)
	return append(addr, sum[:addressHashBytes]...)
}

// Encode parses the command text and returns the payload with the
// addresses the transaction reads and writes.
func Encode(text string) (payload []byte, inputs, outputs [][]byte, err error) {
	c, err := ParseCommand(text)
	if err != nil {
		return nil, nil, nil, err
	}

	payload, err = c.Encode()
	if err != nil {
		return nil, nil, nil, err
	}

	addr := Address(c.Identifier)
	return payload, [][]byte{addr}, [][]byte{addr}, nil
}
