// Command mkelf produces the flat ELF64 images the kernel loader
// accepts: a 64-byte header naming an entry offset, then the program
// name, NUL terminated, padded with zeros to the image size. The
// loader copies the whole image to the base of the process stack
// window and resolves the name against the program registry, so the
// name is the part that matters.
package main

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"orbital/arch"
	"orbital/kernel"
)

const defaultSize = 128

func main() {
	var (
		name    = flag.String("name", "", "Program name to embed in the image.")
		outPath = flag.String("out", "", "Output image path.")
		entry   = flag.String("entry", "0x80", "Entry point offset, decimal or 0x hex.")
		size    = flag.Int("size", defaultSize, "Total image size in bytes, zero padded.")
		inspect = flag.String("inspect", "", "Inspect an existing image instead of building one.")
	)
	flag.Parse()

	if *inspect != "" {
		if err := inspectImage(os.Stdout, *inspect); err != nil {
			fatalf("inspect: %v", err)
		}
		return
	}

	if *name == "" || *outPath == "" {
		fatalf("usage: mkelf -name prog -out prog.elf [-entry 0x80] [-size %d]\n       mkelf -inspect prog.elf", defaultSize)
	}
	entryPoint, err := strconv.ParseUint(*entry, 0, 64)
	if err != nil {
		fatalf("bad -entry: %v", err)
	}

	image, err := buildImage(*name, entryPoint, *size)
	if err != nil {
		fatalf("build: %v", err)
	}
	if err := os.WriteFile(*outPath, image, 0o644); err != nil {
		fatalf("write: %v", err)
	}
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}

// buildImage assembles header plus name body and verifies the result
// through the same parser the loader uses.
func buildImage(name string, entry uint64, size int) ([]byte, error) {
	if entry == 0 {
		return nil, fmt.Errorf("entry point must be nonzero")
	}
	need := kernel.ELFHeaderSize + len(name) + 1
	if size < need {
		return nil, fmt.Errorf("size %d too small for %q, need at least %d", size, name, need)
	}
	if size > arch.StackSize {
		return nil, fmt.Errorf("size %d exceeds the %d byte process window", size, arch.StackSize)
	}
	for i := 0; i < len(name); i++ {
		if name[i] == 0 {
			return nil, fmt.Errorf("name contains a NUL byte")
		}
	}

	image := make([]byte, size)
	copy(image, []byte{0x7F, 'E', 'L', 'F'})
	image[0x04] = 2 // ELFCLASS64
	image[0x05] = 1 // little endian
	image[0x06] = 1 // EV_CURRENT
	binary.LittleEndian.PutUint16(image[0x10:], uint16(elf.ET_EXEC))
	binary.LittleEndian.PutUint16(image[0x12:], uint16(elf.EM_X86_64))
	binary.LittleEndian.PutUint32(image[0x14:], 1) // version again, debug/elf checks both
	binary.LittleEndian.PutUint64(image[0x18:], entry)
	copy(image[kernel.ImageNameOffset:], name)

	if _, err := kernel.ParseELF(image); err != nil {
		return nil, err
	}
	return image, nil
}

// embeddedName reads the NUL-terminated program name out of image.
func embeddedName(image []byte) string {
	body := image[kernel.ImageNameOffset:]
	if i := bytes.IndexByte(body, 0); i >= 0 {
		return string(body[:i])
	}
	return string(body)
}

// inspectImage prints what both parsers see: the kernel's minimal
// header parse and the stdlib's full ELF reader. Disagreement means
// the image leans on leniency the stdlib does not grant.
func inspectImage(w io.Writer, path string) error {
	image, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	info, err := kernel.ParseELF(image)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "name:  %s\n", embeddedName(image))
	fmt.Fprintf(w, "entry: %#x\n", info.Entry)
	fmt.Fprintf(w, "size:  %d\n", info.Size)

	f, err := elf.NewFile(bytes.NewReader(image))
	if err != nil {
		return fmt.Errorf("stdlib elf disagrees: %w", err)
	}
	defer f.Close()
	fmt.Fprintf(w, "class: %v\n", f.Class)
	fmt.Fprintf(w, "machine: %v\n", f.Machine)
	fmt.Fprintf(w, "type:  %v\n", f.Type)
	if f.Entry != info.Entry {
		return fmt.Errorf("stdlib elf reads entry %#x, loader reads %#x", f.Entry, info.Entry)
	}
	return nil
}
