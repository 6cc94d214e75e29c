// pdxinspect dumps the chunk tree of a PDX .mesh or .anim file.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	pdx "github.com/Tetrino/io-pdx-mesh"
)

var verbose = flag.Bool("v", false, "print leaf payload values, not just counts")

func main() {
	log.SetFlags(0)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: pdxinspect [-v] <file.mesh|file.anim>\n")
		os.Exit(2)
	}
	path := flag.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}
	root, version, err := pdx.ReadChunkTree(data)
	if err != nil {
		log.Fatalf("%s: %v", path, err)
	}
	fmt.Printf("%s: format revision %d, %d bytes\n", path, version, len(data))
	dump(root, 0)
}

func dump(c *pdx.Chunk, depth int) {
	indent := strings.Repeat("  ", depth)
	if c.IsContainer() {
		fmt.Printf("%s[%s] (%d children)\n", indent, c.Tag, len(c.Children))
		for _, ch := range c.Children {
			dump(ch, depth+1)
		}
		return
	}
	fmt.Printf("%s%s (%s, %d)", indent, c.Tag, c.Kind, c.ElementCount())
	if *verbose {
		fmt.Printf(":  %s", payload(c))
	}
	fmt.Println()
}

func payload(c *pdx.Chunk) string {
	switch c.Kind {
	case pdx.KindInt32:
		return fmt.Sprint(c.Ints)
	case pdx.KindUint32:
		return fmt.Sprint(c.Uints)
	case pdx.KindString:
		return fmt.Sprintf("%q", c.Str)
	default:
		return fmt.Sprint(c.Floats)
	}
}
