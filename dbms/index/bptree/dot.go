package bptree

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/bptidx/dbms/index/btpage"
	"github.com/btree-query-bench/bptidx/dbms/pager"
)

// Print writes the tree as Graphviz DOT to dotPath and, if pngPath is not
// empty, renders it with the `dot` binary.
func (t *Tree) Print(dotPath, pngPath string) error {
	f, err := os.Create(dotPath)
	if err != nil {
		return errors.Wrapf(err, "create %s", dotPath)
	}
	if err := t.ExportDOT(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", dotPath)
	}
	if pngPath == "" {
		return nil
	}

	cmd := exec.Command("dot", "-Tpng", dotPath, "-o", pngPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "graphviz (is 'dot' installed?): %s", out)
	}
	return nil
}

// ExportDOT writes the tree as a Graphviz digraph: internal nodes in blue,
// leaves in green on one rank, the sibling chain as dashed edges.
func (t *Tree) ExportDOT(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "digraph BPlusTree {")
	fmt.Fprintln(bw, "  graph [ranksep=0.8, nodesep=0.5, bgcolor=\"#ffffff\", rankdir=TB];")
	fmt.Fprintln(bw, "  node [shape=none, fontname=\"Helvetica\", fontsize=10];")
	fmt.Fprintln(bw, "  edge [arrowsize=0.8, color=\"#444444\"];")

	if t.height > 0 {
		var leaves []pager.PageID
		next := make(map[pager.PageID]pager.PageID)
		if err := t.exportRec(bw, t.root, 1, &leaves, next); err != nil {
			return err
		}

		if len(leaves) > 1 {
			fmt.Fprintln(bw, "  { rank=same;")
			for _, id := range leaves {
				fmt.Fprintf(bw, "    page%d;\n", id)
			}
			fmt.Fprintln(bw, "  }")
			for _, id := range leaves {
				if n := next[id]; n != pager.NoPage {
					fmt.Fprintf(bw, "  page%d:next -> page%d [style=dashed, color=\"#03A9F4\", constraint=false, tailclip=false];\n", id, n)
				}
			}
		}
	}

	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func (t *Tree) exportRec(w io.Writer, id pager.PageID, level int, leaves *[]pager.PageID, next map[pager.PageID]pager.PageID) error {
	if level == t.height {
		var leaf LeafNode
		if err := leaf.ReadFrom(id, t.store); err != nil {
			return err
		}
		fill := 100 * float64(leaf.EntryCount()) / float64(btpage.LeafCapacity)
		label := fmt.Sprintf(`<<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">
				<TR><TD COLSPAN="2" BGCOLOR="#D5E8D4"><B>PAGE %d (LEAF)</B><BR/><FONT POINT-SIZE="8">Fill: %.1f%%</FONT></TD></TR>
				<TR><TD PORT="keys" BGCOLOR="#F5F5F5" ALIGN="LEFT">`, id, fill)
		for _, e := range leaf.Entries() {
			label += fmt.Sprintf("<B>%d</B> <FONT COLOR='#666666'>[%d.%d]</FONT><BR/>", e.Key, e.Ref.Page, e.Ref.Slot)
		}
		nextLabel := "NULL"
		if leaf.NextSibling() != pager.NoPage {
			nextLabel = fmt.Sprintf("%d", leaf.NextSibling())
		}
		label += fmt.Sprintf(`</TD><TD PORT="next" BGCOLOR="#E1F5FE" VALIGN="MIDDLE">Next: %s</TD></TR></TABLE>>`, nextLabel)

		fmt.Fprintf(w, "  page%d [label=%s];\n", id, label)
		*leaves = append(*leaves, id)
		next[id] = leaf.NextSibling()
		return nil
	}

	var node InternalNode
	if err := node.ReadFrom(id, t.store); err != nil {
		return err
	}
	n := node.EntryCount()
	fill := 100 * float64(n) / float64(btpage.InternalCapacity)
	label := fmt.Sprintf(`<<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">
				<TR><TD COLSPAN="%d" BGCOLOR="#DAE8FC"><B>PAGE %d (INTERNAL)</B><BR/><FONT POINT-SIZE="8">Fill: %.1f%%</FONT></TD></TR><TR>`, n*2+1, id, fill)
	label += fmt.Sprintf(`<TD PORT="f0" BGCOLOR="#E1F5FE">P:%d</TD>`, node.LeadingChild())
	for i, e := range node.Entries() {
		label += fmt.Sprintf(`<TD BGCOLOR="#FFFFFF"><B>%d</B></TD><TD PORT="f%d" BGCOLOR="#E1F5FE">P:%d</TD>`, e.Key, i+1, e.Child)
	}
	label += `</TR></TABLE>>`
	fmt.Fprintf(w, "  page%d [label=%s];\n", id, label)

	for c := 0; c <= n; c++ {
		child := node.Child(c)
		fmt.Fprintf(w, "  page%d:f%d -> page%d;\n", id, c, child)
		if err := t.exportRec(w, child, level+1, leaves, next); err != nil {
			return err
		}
	}
	return nil
}
