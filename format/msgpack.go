package format

import (
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"tlog.app/go/errors"
)

// WriteMsgpack encodes v for an external renderer.
func WriteMsgpack(w io.Writer, v View) error {
	err := msgpack.NewEncoder(w).Encode(v)
	if err != nil {
		return errors.Wrap(err, "encode view")
	}

	return nil
}

func ReadMsgpack(r io.Reader) (v View, err error) {
	err = msgpack.NewDecoder(r).Decode(&v)
	if err != nil {
		return View{}, errors.Wrap(err, "decode view")
	}

	return v, nil
}
