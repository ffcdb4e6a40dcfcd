// Package upstream forwards approved requests to the vendor DNS account.
// The vendor API is treated as an opaque backend: this package owns
// session setup, operation mapping and record-shape translation, nothing
// else in the service knows the wire format.
package upstream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"

	"dnsgate/internal/config"
	"dnsgate/internal/database"
	"dnsgate/internal/model"
)

const defaultTTL = 300

type Gateway struct {
	client  *route53.Client
	db      *database.DB
	timeout time.Duration
}

// NewGateway builds the vendor session from static credentials. Retries
// are capped at one extra attempt and the SDK retryer only replays
// transient transport and throttling failures, never vendor-side
// authentication or validation errors.
func NewGateway(cfg *config.Config, db *database.DB) (*Gateway, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AWS.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AWS.AccessKeyID,
				cfg.AWS.SecretAccessKey,
				"",
			),
		),
		awsconfig.WithRetryMaxAttempts(2),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Gateway{
		client:  route53.NewFromConfig(awsCfg),
		db:      db,
		timeout: cfg.Upstream.Timeout(),
	}, nil
}

// ReadRecords lists every record set under the zone that serves domain.
func (g *Gateway) ReadRecords(ctx context.Context, domain string) ([]model.DNSRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	zoneID, err := g.resolveZoneID(ctx, domain)
	if err != nil {
		return nil, err
	}

	var records []model.DNSRecord
	var nextName *string
	var nextType types.RRType

	for {
		input := &route53.ListResourceRecordSetsInput{
			HostedZoneId: aws.String(zoneID),
		}
		if nextName != nil {
			input.StartRecordName = nextName
			input.StartRecordType = nextType
		}

		result, err := g.client.ListResourceRecordSets(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list record sets: %w", err)
		}

		for _, rrs := range result.ResourceRecordSets {
			ttl := int64(defaultTTL)
			if rrs.TTL != nil {
				ttl = *rrs.TTL
			}
			for _, rr := range rrs.ResourceRecords {
				records = append(records, model.DNSRecord{
					Hostname:    strings.TrimSuffix(*rrs.Name, "."),
					Type:        string(rrs.Type),
					Destination: *rr.Value,
					TTL:         ttl,
				})
			}
		}

		if !result.IsTruncated {
			break
		}
		nextName = result.NextRecordName
		nextType = result.NextRecordType
	}

	return records, nil
}

// ApplyChanges maps the approved record entries onto one change batch.
// The vendor applies a batch atomically, which preserves the
// all-or-nothing guarantee the matcher already enforced.
func (g *Gateway) ApplyChanges(ctx context.Context, domain, operation string, entries []model.RecordEntry) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	zoneID, err := g.resolveZoneID(ctx, domain)
	if err != nil {
		return err
	}

	var changes []types.Change
	for _, e := range entries {
		changes = append(changes, types.Change{
			Action: changeAction(operation, e),
			ResourceRecordSet: &types.ResourceRecordSet{
				Name: aws.String(e.Hostname),
				Type: types.RRType(e.Type),
				TTL:  aws.Int64(defaultTTL),
				ResourceRecords: []types.ResourceRecord{
					{Value: aws.String(recordValue(e))},
				},
			},
		})
	}

	_, err = g.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &types.ChangeBatch{
			Comment: aws.String("Changed via dnsgate"),
			Changes: changes,
		},
	})
	if err != nil {
		return fmt.Errorf("change record sets: %w", err)
	}
	return nil
}

func changeAction(operation string, e model.RecordEntry) types.ChangeAction {
	if e.Delete || operation == model.OpDelete {
		return types.ChangeActionDelete
	}
	if operation == model.OpCreate {
		return types.ChangeActionCreate
	}
	return types.ChangeActionUpsert
}

// recordValue renders the wire value. MX and SRV carry their priority
// in front of the data, everything else is the destination verbatim.
func recordValue(e model.RecordEntry) string {
	switch e.Type {
	case "MX", "SRV":
		return fmt.Sprintf("%d %s", e.Priority, e.Destination)
	}
	return e.Destination
}

// resolveZoneID finds the hosted zone with the longest name that is a
// suffix of domain. Lookups are cached in the database with a short TTL
// since the zone set changes rarely.
func (g *Gateway) resolveZoneID(ctx context.Context, domain string) (string, error) {
	key := strings.ToLower(strings.TrimSuffix(domain, "."))
	if zoneID, ok := g.db.GetCachedZoneID(key); ok {
		return zoneID, nil
	}

	var best string
	var bestLen int
	var marker *string

	for {
		result, err := g.client.ListHostedZones(ctx, &route53.ListHostedZonesInput{Marker: marker})
		if err != nil {
			return "", fmt.Errorf("list hosted zones: %w", err)
		}
		for _, z := range result.HostedZones {
			zoneName := strings.ToLower(strings.TrimSuffix(*z.Name, "."))
			if (key == zoneName || strings.HasSuffix(key, "."+zoneName)) && len(zoneName) > bestLen {
				best = extractZoneID(*z.Id)
				bestLen = len(zoneName)
			}
		}
		if !result.IsTruncated {
			break
		}
		marker = result.NextMarker
	}

	if best == "" {
		return "", fmt.Errorf("no hosted zone serves %q", domain)
	}
	_ = g.db.CacheZoneID(key, best)
	return best, nil
}

func extractZoneID(fullID string) string {
	parts := strings.Split(fullID, "/")
	return parts[len(parts)-1]
}
