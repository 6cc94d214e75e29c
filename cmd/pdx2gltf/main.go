// pdx2gltf converts a PDX .mesh file to binary glTF for previewing.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	pdx "github.com/Tetrino/io-pdx-mesh"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 || len(os.Args) > 3 {
		fmt.Fprintf(os.Stderr, "usage: pdx2gltf <file.mesh> [out.glb]\n")
		os.Exit(2)
	}
	in := os.Args[1]
	out := strings.TrimSuffix(in, pdx.MeshExt) + ".glb"
	if len(os.Args) == 3 {
		out = os.Args[2]
	}

	doc, warnings, err := pdx.MeshReadFrom(in)
	if err != nil {
		log.Fatalf("%s: %v", in, err)
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}

	gdoc, err := pdx.DocumentToGltf(doc)
	if err != nil {
		log.Fatal(err)
	}
	glb, err := pdx.GltfBinary(gdoc, 8)
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(out, glb, 0o644); err != nil {
		log.Fatal(err)
	}
	log.Printf("%s: %d meshes, %d bytes -> %s", in, len(doc.Meshes), len(glb), out)
}
