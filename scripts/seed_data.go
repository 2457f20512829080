//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/quickhop/quickhop/internal/config"
	"github.com/quickhop/quickhop/internal/database"
	"github.com/quickhop/quickhop/internal/models"
	"github.com/quickhop/quickhop/internal/repository"
	"github.com/quickhop/quickhop/pkg/utils"
)

var (
	firstNames = []string{"Rahul", "Priya", "Amit", "Sneha", "Vikram", "Anita", "Raj", "Neha", "Suresh", "Kavita",
		"Arun", "Deepa", "Kiran", "Meera", "Sanjay", "Ritu", "Vijay", "Pooja", "Manoj", "Swati"}
	lastNames  = []string{"Kumar", "Sharma", "Patel", "Singh", "Reddy", "Rao", "Gupta", "Joshi", "Nair", "Menon"}
	businesses = []string{"Crumb & Co Bakery", "Lotus Pharmacy", "Fresh Basket Grocers", "Page Turner Books", "Bloom Florist"}
	streets    = []string{"MG Road", "Church Street", "Brigade Road", "Residency Road", "Lavelle Road", "Richmond Road"}
)

func randomName() string {
	return fmt.Sprintf("%s %s", firstNames[rand.Intn(len(firstNames))], lastNames[rand.Intn(len(lastNames))])
}

func randomAddress() string {
	return fmt.Sprintf("%d %s", 1+rand.Intn(200), streets[rand.Intn(len(streets))])
}

func main() {
	rand.Seed(time.Now().UnixNano())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.DatabaseURL, cfg.DBMaxConnections, cfg.DBMaxIdleConnections)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	profileRepo := repository.NewProfileRepository(db.DB)
	deliveryRepo := repository.NewDeliveryRepository(db.DB)
	dropOffRepo := repository.NewDropOffRepository(db.DB)
	requestRepo := repository.NewRequestRepository(db.DB)

	// Create businesses
	log.Printf("Creating %d businesses...", len(businesses))
	businessIDs := make([]string, 0)
	for i, name := range businesses {
		profile := &models.Profile{
			Email: fmt.Sprintf("business%d@quickhop.example", i+1),
			Name:  name,
			Role:  models.RoleBusiness,
		}
		if err := profileRepo.Create(ctx, profile); err != nil {
			log.Printf("Failed to create business: %v", err)
			continue
		}
		businessIDs = append(businessIDs, profile.ID)
	}
	log.Printf("Created %d businesses", len(businessIDs))

	// Create riders
	log.Println("Creating 20 riders...")
	riderIDs := make([]string, 0)
	for i := 0; i < 20; i++ {
		phone := fmt.Sprintf("98%08d", rand.Intn(100000000))
		profile := &models.Profile{
			Email: fmt.Sprintf("rider%d@quickhop.example", i+1),
			Name:  randomName(),
			Role:  models.RoleRider,
			Phone: &phone,
		}
		if err := profileRepo.Create(ctx, profile); err != nil {
			log.Printf("Failed to create rider: %v", err)
			continue
		}
		riderIDs = append(riderIDs, profile.ID)
	}
	log.Printf("Created %d riders", len(riderIDs))

	// Create deliveries with drop-offs and open claim requests
	log.Println("Creating 30 deliveries...")
	deliveryIDs := make([]string, 0)
	requestIDs := make([]string, 0)
	for i := 0; i < 30; i++ {
		businessID := businessIDs[rand.Intn(len(businessIDs))]
		delivery := &models.Delivery{
			BusinessID:    businessID,
			BusinessName:  businesses[rand.Intn(len(businesses))],
			PickupAddress: randomAddress(),
		}
		if err := deliveryRepo.Create(ctx, delivery); err != nil {
			log.Printf("Failed to create delivery: %v", err)
			continue
		}
		deliveryIDs = append(deliveryIDs, delivery.ID)

		dropOffs := make([]*models.DropOff, 0)
		for seq := 1; seq <= 1+rand.Intn(3); seq++ {
			phone := fmt.Sprintf("91%08d", rand.Intn(100000000))
			tracking := utils.GenerateTrackingNumber()
			dropOffs = append(dropOffs, &models.DropOff{
				DeliveryID:     delivery.ID,
				CustomerName:   randomName(),
				CustomerPhone:  phone,
				Address:        randomAddress(),
				Sequence:       seq,
				TrackingNumber: &tracking,
			})
		}
		if err := dropOffRepo.CreateBatch(ctx, dropOffs); err != nil {
			log.Printf("Failed to create drop-offs: %v", err)
			continue
		}

		expiresAt := time.Now().Add(time.Duration(cfg.RequestExpiryMinutes) * time.Minute)
		request := &models.DeliveryRequest{
			DeliveryID: delivery.ID,
			ExpiresAt:  &expiresAt,
		}
		if err := requestRepo.Create(ctx, request); err != nil {
			log.Printf("Failed to create request: %v", err)
			continue
		}
		requestIDs = append(requestIDs, request.ID)
	}

	// Summary
	log.Println("\n=== Seed Data Summary ===")
	log.Printf("Businesses created: %d", len(businessIDs))
	log.Printf("Riders created: %d", len(riderIDs))
	log.Printf("Deliveries created: %d", len(deliveryIDs))
	log.Printf("Open requests created: %d", len(requestIDs))
	log.Println("\nSample Business ID:", businessIDs[0])
	log.Println("Sample Rider ID:", riderIDs[0])
	log.Println("Sample Request ID:", requestIDs[0])
	log.Println("\nYou can now test with these IDs!")
}
