package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
)

func collectionIDArg(c *cli.Context, i int) (int, error) {
	return idArg(c, i, "collectionId", "collection")
}

func collectionsListAction(c *cli.Context) error {
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	collections, err := e.client.ListCollections(c.Context)
	if err != nil {
		return fmt.Errorf("failed to fetch collections: %w", err)
	}
	if len(collections) == 0 {
		fmt.Fprintln(c.App.Writer, "You have no collections")
		return nil
	}
	rows := make([][]string, 0, len(collections))
	for _, col := range collections {
		rows = append(rows, []string{
			strconv.Itoa(col.ID),
			col.Name,
			strconv.Itoa(col.BookCount),
			col.CreatedDate,
		})
	}
	fmt.Fprintln(c.App.Writer, renderTable(
		[]string{"ID", "Name", "Books", "Created"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight},
	))
	return nil
}

func collectionsCreateAction(c *cli.Context) error {
	name := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if name == "" {
		return fmt.Errorf("missing <name> argument")
	}
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	col, err := e.client.CreateCollection(c.Context, name)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Created collection %q (%d)\n", col.Name, col.ID)
	return nil
}

func collectionsDeleteAction(c *cli.Context) error {
	id, err := collectionIDArg(c, 0)
	if err != nil {
		return err
	}
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.client.DeleteCollection(c.Context, id); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Deleted collection %d, its books stay in the catalog\n", id)
	return nil
}

func collectionsShowAction(c *cli.Context) error {
	id, err := collectionIDArg(c, 0)
	if err != nil {
		return err
	}
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	books, err := e.client.CollectionBooks(c.Context, id)
	if err != nil {
		return fmt.Errorf("failed to fetch collection: %w", err)
	}
	printBooks(c, books, "This collection is empty")
	return nil
}

func collectionsAddAction(c *cli.Context) error {
	id, bookID, err := collectionAndBook(c)
	if err != nil {
		return err
	}
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.client.AddToCollection(c.Context, id, bookID); err != nil {
		return fmt.Errorf("failed to add book to collection: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Added book %d to collection %d\n", bookID, id)
	return nil
}

func collectionsRemoveAction(c *cli.Context) error {
	id, bookID, err := collectionAndBook(c)
	if err != nil {
		return err
	}
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.client.RemoveFromCollection(c.Context, id, bookID); err != nil {
		return fmt.Errorf("failed to remove book from collection: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Removed book %d from collection %d\n", bookID, id)
	return nil
}

func collectionAndBook(c *cli.Context) (int, int, error) {
	id, err := collectionIDArg(c, 0)
	if err != nil {
		return 0, 0, err
	}
	bookID, err := bookIDArg(c, 1)
	if err != nil {
		return 0, 0, err
	}
	return id, bookID, nil
}
