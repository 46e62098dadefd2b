package main

import (
	"context"
	"fmt"
	"time"

	"github.com/socrata/socrata-sdk-go/api/datasets"
	"github.com/socrata/socrata-sdk-go/model"
)

func main() {
	var options []datasets.Option
	options = []datasets.Option{
		datasets.WithEndpoint("https://data.example.com/api"),
		datasets.WithCredentials("user@example.com", "password"),
		datasets.WithAppToken("app-token"),
		datasets.WithBatchingInterval(5 * time.Second),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := datasets.NewClient(ctx, options...)
	if err != nil {
		fmt.Println("Error in initializing client ", err)
		return
	}

	dataset, err := client.CreateDataset(ctx, "Parks", "City parks and their size")
	if err != nil {
		fmt.Println("Error in creating dataset ", err)
		return
	}
	for _, column := range []model.Column{
		{Name: "Name", DataTypeName: "text"},
		{Name: "Acres", DataTypeName: "number"},
	} {
		if _, err := dataset.AddColumn(ctx, column); err != nil {
			fmt.Println("Error in adding column ", err)
			return
		}
	}

	fmt.Println("Queueing rows....")
	for _, row := range []model.Row{
		{"name": "Central", "acres": 843},
		{"name": "Riverside", "acres": 12},
		{"name": "Lakeside", "acres": 40},
	} {
		if err := dataset.QueueAddRow(row); err != nil {
			fmt.Println("Error in queueing row ", err)
			return
		}
	}

	time.Sleep(6 * time.Second)
	fmt.Println("Pending writes after background flush: ", client.PendingWrites())

	if err := dataset.Publish(ctx); err != nil {
		fmt.Println("Error in publishing dataset ", err)
		return
	}

	copied, err := dataset.Copy(ctx)
	if err != nil {
		fmt.Println("Error in copying dataset ", err)
		return
	}
	fmt.Println("Copied to ", copied.ID())

	if err := client.Shutdown(ctx); err != nil {
		fmt.Println("Error in shutting down ", err)
	}
}
